package keybackend

// KeysConfig lists the access keys presigned URLs are verified against.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline"`
	// File is a JSON or YAML list of key pairs, see LoadKeysFromFile.
	File string `mapstructure:"file"`
}

// NewSecretStore merges cfg.Inline, cfg.File and extra into one store.
// Pairs missing either half are skipped. On duplicate access keys the later
// source wins, in that order.
func NewSecretStore(cfg KeysConfig, extra ...KeyPair) (*MapSecretStore, error) {
	keys := make(map[string]string)
	addPairs(keys, cfg.Inline)

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	addPairs(keys, extra)
	return NewMapSecretStore(keys), nil
}

func addPairs(keys map[string]string, pairs []KeyPair) {
	for _, p := range pairs {
		if p.AccessKey != "" && p.SecretKey != "" {
			keys[p.AccessKey] = p.SecretKey
		}
	}
}
