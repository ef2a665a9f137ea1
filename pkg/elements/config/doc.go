/*
Package config loads settings for path backends and checkpoint stores.

# Overview

Config wraps a map[string]any decoded from YAML or JSON and exposes typed
accessors that return a default when a key is missing or has the wrong
type. Storage and Checkpoint read the two well-known sections on top of
those accessors:

	storage:
	  metadata_timeout: 10s
	  upload_timeout: 5m
	  append_timeout: 30s
	  proxy_root: /mnt/cns
	checkpoint:
	  root: gs://bucket/run-7/ckpt
	  keep: 3
	  codec: json

	cfg, err := config.FromFile("elements.yaml")
	if err != nil {
	    return err
	}
	store := cfg.Storage()
	ckpt := cfg.Checkpoint()

# Variables

FromFile expands ${NAME} and $NAME from the environment in every string
value, so one file can serve several runs:

	checkpoint:
	  root: gs://bucket/${RUN_ID}/ckpt

Config.Expand does the same from any variable map, and can fail on
undefined names with WithMissingAction(MissingError).

# Type Coercion

Duration accepts a time.ParseDuration string, a time.Duration, or a number
of seconds. Int accepts float64 values without a fractional part, which is
how JSON numbers arrive. Int, Bool and Duration also parse strings, so
values filled in from the environment work.

Keys may be dotted: cfg.Int("checkpoint.keep", 0).

# Thread Safety

Config is safe for concurrent reads. The underlying map must not be
modified after creation.
*/
package config
