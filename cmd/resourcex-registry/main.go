// Command resourcex-registry runs the §4.10 HTTP registry server: a
// thin cobra entry point over server.Server, the role the teacher's
// cmd/registry/main.go plays over handlers.App — starting from a data
// root, an fs-backed store.BlobStore/ManifestStore pair, and an HTTP
// listen address.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deepractice/resourcex/cas"
	"github.com/deepractice/resourcex/internal/rxconfig"
	"github.com/deepractice/resourcex/server"
	"github.com/deepractice/resourcex/store/fs"
)

func main() {
	var (
		addr string
		root string
	)

	cmd := &cobra.Command{
		Use:   "resourcex-registry",
		Short: "Serve the ResourceX HTTP registry protocol",
		RunE: func(_ *cobra.Command, _ []string) error {
			if root == "" {
				r, err := rxconfig.DataRoot()
				if err != nil {
					return err
				}
				root = r
			}

			blobs := fs.NewBlobStore(root)
			manifests := fs.NewManifestStore(root)
			reg := cas.New(blobs, manifests, nil)
			srv := server.New(reg)

			logrus.WithField("addr", addr).WithField("root", root).Info("resourcex-registry listening")
			return http.ListenAndServe(addr, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5080", "HTTP listen address")
	cmd.Flags().StringVar(&root, "root", "", "data root (defaults to RESOURCEX_HOME/RX_HOME)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
