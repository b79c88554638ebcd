//go:build cgo

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfolio-rag/internal/embeddings"
)

var (
	forceDownload bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "Force re-download even if ONNX runtime exists")
}

// initCmd installs the local embedding runtime
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Download the ONNX runtime for local embeddings",
	Long: `Download the ONNX runtime library required by the fastembed embeddings
provider. The library is installed to:
  ~/.config/portfolio-rag/lib/

If the ONNX_PATH environment variable is set, that path takes precedence.
The tei provider does not need the runtime.

Examples:
  portfolio-rag init
  portfolio-rag init --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if !forceDownload {
		if path := embeddings.GetONNXLibraryPath(); path != "" {
			cmd.Printf("ONNX runtime already installed at: %s\n", path)
			cmd.Println("Use --force to re-download.")
			return nil
		}
	}

	installer := embeddings.NewONNXInstaller(nil)
	cmd.Printf("Downloading ONNX runtime v%s...\n", installer.Version)
	path, err := installer.Install(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to download ONNX runtime: %w", err)
	}
	cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
	return nil
}
