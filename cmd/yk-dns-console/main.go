package main

import (
	"fmt"
	"os"

	ctrl "sigs.k8s.io/controller-runtime"

	_ "github.com/yuriy-kovalchuk/yk-dns-console/internal/dns/stores"
)

var Version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
