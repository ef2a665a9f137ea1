package config

import "time"

// Section keys read by Storage and Checkpoint.
const (
	StorageKey    = "storage"
	CheckpointKey = "checkpoint"
)

// StorageSettings configures the path backends.
type StorageSettings struct {
	// MetadataTimeout bounds the retry window of object store metadata
	// mutations (delete, copy, rename, compose).
	MetadataTimeout time.Duration

	// UploadTimeout bounds the retry window of object uploads.
	UploadTimeout time.Duration

	// AppendTimeout bounds how long an append waits for the target and
	// its temporary object to become visible before composing.
	AppendTimeout time.Duration
	AppendPoll    time.Duration

	// ProxyRoot is the local mount backing proxy paths. Empty means the
	// proxy prefix is served from the root filesystem.
	ProxyRoot string

	// ProxyPrefix selects the proxy backend.
	ProxyPrefix string

	// ProxyAppendSuffix is the option token added to proxy paths opened
	// in append mode.
	ProxyAppendSuffix string

	// HideAccelerators clears accelerator visibility variables before the
	// proxy gateway is first initialized.
	HideAccelerators bool
}

// DefaultStorageSettings returns the built-in storage settings.
func DefaultStorageSettings() StorageSettings {
	return StorageSettings{
		MetadataTimeout:   10 * time.Second,
		UploadTimeout:     300 * time.Second,
		AppendTimeout:     30 * time.Second,
		AppendPoll:        100 * time.Millisecond,
		ProxyPrefix:       "/cns/",
		ProxyAppendSuffix: "%r=3.2",
		HideAccelerators:  true,
	}
}

// Storage reads the storage section, falling back to
// DefaultStorageSettings for missing values.
func (c Config) Storage() StorageSettings {
	d := DefaultStorageSettings()
	s := c.Sub(StorageKey)
	return StorageSettings{
		MetadataTimeout:   s.Duration("metadata_timeout", d.MetadataTimeout),
		UploadTimeout:     s.Duration("upload_timeout", d.UploadTimeout),
		AppendTimeout:     s.Duration("append_timeout", d.AppendTimeout),
		AppendPoll:        s.Duration("append_poll", d.AppendPoll),
		ProxyRoot:         s.String("proxy_root", d.ProxyRoot),
		ProxyPrefix:       s.String("proxy_prefix", d.ProxyPrefix),
		ProxyAppendSuffix: s.String("proxy_append_suffix", d.ProxyAppendSuffix),
		HideAccelerators:  s.Bool("hide_accelerators", d.HideAccelerators),
	}
}

// CheckpointSettings configures a checkpoint store.
type CheckpointSettings struct {
	// Root is the checkpoint directory; any path string the registry
	// understands.
	Root string

	// Keep is the number of snapshots retained; 0 keeps all.
	Keep int

	// Write disables all writes when false (dry run).
	Write bool

	// Codec names the payload encoding: "json", "yaml" or "gob".
	Codec string
}

// DefaultCheckpointSettings returns the built-in checkpoint settings.
func DefaultCheckpointSettings() CheckpointSettings {
	return CheckpointSettings{Write: true, Codec: "json"}
}

// Checkpoint reads the checkpoint section.
func (c Config) Checkpoint() CheckpointSettings {
	d := DefaultCheckpointSettings()
	s := c.Sub(CheckpointKey)
	return CheckpointSettings{
		Root:  s.String("root", d.Root),
		Keep:  s.Int("keep", d.Keep),
		Write: s.Bool("write", d.Write),
		Codec: s.String("codec", d.Codec),
	}
}
