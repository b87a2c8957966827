// Command schema-generator writes the JSON schema of scribe.yml for editors.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grovetools/scribe/config"
	"github.com/grovetools/scribe/logging"
)

func main() {
	out := flag.String("o", "schema/scribe.schema.json", "output path")
	flag.Parse()

	log := logging.NewLogger("schema-generator")

	schema, err := config.GenerateSchema()
	if err != nil {
		log.WithError(err).Fatal("Error generating schema")
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.WithError(err).Fatal("Error creating schema directory")
	}
	if err := os.WriteFile(*out, append(schema, '\n'), 0o644); err != nil {
		log.WithError(err).Fatal("Error writing schema file")
	}
	log.WithField("path", *out).Info("Generated config schema")
}
