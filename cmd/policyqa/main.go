// Command policyqa serves a policy document viewer with a question-answering
// assistant backed by keyword retrieval.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/0xcro3dile/policyqa-go/internal/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	app.Run(version)
}
