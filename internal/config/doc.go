// Package config loads the atomstore CLI configuration.
//
// The configuration lives in atomstore.json or atomstore.toml. Every field is
// optional; missing values take the defaults below.
//
// # Configuration File Structure
//
//	{
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "inspector": {
//	    "addr": "localhost:7070"
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "atom"
//	  },
//	  "store": {
//	    "maxFlushPasses": 1000
//	  },
//	  "bench": {
//	    "stores": 8,
//	    "depth": 16,
//	    "writes": 1000
//	  }
//	}
//
// The TOML form uses the same tables with snake_case keys:
//
//	[log]
//	level = "debug"
//	format = "pretty"
//
//	[store]
//	max_flush_passes = 50
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	store := atom.NewStore(cfg.StoreOptions()...)
package config
