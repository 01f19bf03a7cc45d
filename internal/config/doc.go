// Package config provides configuration parsing for the vbind live host
// and CLI.
//
// The configuration is stored in vbind.json. Every field is optional.
//
// # Configuration File Structure
//
//	{
//	  "addr": ":8080",
//	  "metricsPath": "/metrics",
//	  "logLevel": "info",
//	  "logFormat": "text",
//	  "strict": false,
//	  "effectBudget": 100000,
//	  "tracerName": "vbind",
//	  "keyField": "id",
//	  "textField": "title",
//	  "itemTag": "li",
//	  "itemsFile": "items.json",
//	  "shutdownTimeout": "5s"
//	}
//
// # Usage
//
//	cfg, err := config.LoadFile("vbind.json")
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
