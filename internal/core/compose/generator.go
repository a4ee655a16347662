package compose

import (
	"strings"

	"github.com/artpar/shipyard/internal/core/domain"
)

// ManifestFile is the file name the manifest is stored under in an
// application's directory.
const ManifestFile = "docker-compose.yml"

// =============================================================================
// Generator
// =============================================================================

// Generate renders an Application into a compose manifest.
//
// Services and their port, environment and volume lists are emitted in
// declaration order. A sub-block is emitted only when its list is non-empty,
// so nil and empty lists produce identical output. The same Application
// always yields byte-identical text.
//
//	version: "3.9"
//
//	services:
//	  web:
//	    image: web:latest
//	    ports:
//	      - "8080:80"
//	volumes:
//	  data:
func Generate(app domain.Application) string {
	version := app.ComposeVersion
	if version == "" {
		version = domain.DefaultComposeVersion
	}

	var b strings.Builder
	b.WriteString(`version: "` + version + "\"\n\nservices:\n")

	for _, svc := range app.Services {
		b.WriteString("  " + svc.Name + ":\n")
		b.WriteString("    image: " + svc.Image + "\n")
		writeList(&b, "ports", svc.Ports, true)
		writeList(&b, "environment", svc.Environment, false)
		writeList(&b, "volumes", svc.Volumes, false)
	}

	if len(app.Volumes) > 0 {
		b.WriteString("volumes:\n")
		for _, v := range app.Volumes {
			b.WriteString("  " + v + ":\n")
		}
	}

	return b.String()
}

// writeList emits a service sub-block. Port entries are quoted so YAML never
// reads "22:22" as a base-60 integer.
func writeList(b *strings.Builder, key string, items []string, quote bool) {
	if len(items) == 0 {
		return
	}
	b.WriteString("    " + key + ":\n")
	for _, item := range items {
		if quote {
			b.WriteString(`      - "` + item + "\"\n")
		} else {
			b.WriteString("      - " + item + "\n")
		}
	}
}
