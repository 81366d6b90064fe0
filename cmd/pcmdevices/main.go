// pcmdevices lists the playback and capture devices of a backend.
package main

import (
	"fmt"
	"os"

	log "github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	gopcm "github.com/richinsley/gopcm"
	"github.com/richinsley/gopcm/backend"
	_ "github.com/richinsley/gopcm/backend/alsa"
	_ "github.com/richinsley/gopcm/backend/paudio"
)

func main() {
	backendName := flag.String("backend", "", "backend to query (default: best available)")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})

	var backends []string
	if *backendName != "" {
		backends = []string{*backendName}
	}
	ctx, err := gopcm.NewContext(backends, gopcm.ContextConfig{Log: logger})
	if err != nil {
		logger.Fatal("no usable backend", "err", err)
	}
	defer ctx.Uninit()

	fmt.Printf("backend: %s\n", ctx.Backend())
	for _, t := range []backend.DeviceType{backend.Playback, backend.Capture} {
		infos, err := ctx.Devices(t)
		if err != nil {
			logger.Error("enumeration failed", "type", t.String(), "err", err)
			continue
		}
		fmt.Printf("%s devices:\n", t)
		for _, info := range infos {
			marker := " "
			if info.IsDefault {
				marker = "*"
			}
			fmt.Printf("  %s %-30s id=%q\n", marker, info.Name, info.ID)
		}
	}
}
