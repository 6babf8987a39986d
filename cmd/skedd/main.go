package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sked/internal/app"
	"sked/pkg/sked"
)

func main() {
	var (
		cfgPath string
		envPath string
		check   int
	)
	flag.StringVar(&cfgPath, "config", "./skedd.yaml", "path to config (yaml or json)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file loaded before the config")
	flag.IntVar(&check, "check", 0, "validate the config, print the next N runs per task and exit")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println("fatal env:", err)
		os.Exit(1)
	}
	if v := strings.TrimSpace(os.Getenv("SKED_CONFIG")); v != "" && !flagSet("config") {
		cfgPath = v
	}

	if check > 0 {
		if err := app.CheckFile(os.Stdout, cfgPath, time.Now(), check); err != nil {
			fmt.Println("invalid config:", err)
			os.Exit(1)
		}
		return
	}

	var opts []app.Option
	if lvl := os.Getenv("SKED_LOG_LEVEL"); lvl != "" {
		opts = append(opts, app.WithLogLevel(lvl))
	}

	a, err := app.New(cfgPath, opts...)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	sd := sked.NewShutdown()
	defer sd.Stop()

	if err := a.Run(context.Background(), sd); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
