package app

import (
	"sked/internal/config"
	"sked/internal/observability/debugsrv"
)

// mapDebugConfig resolves the debug section. A missing section is disabled.
func mapDebugConfig(cfg *config.Config) (debugsrv.Config, error) {
	if cfg == nil || cfg.Debug == nil {
		return debugsrv.Config{}, nil
	}
	in := cfg.Debug
	readTO, err := config.ParseDurationOrDefault("debug.read_timeout", in.ReadTimeout, defaultDebugReadTimeout)
	if err != nil {
		return debugsrv.Config{}, err
	}
	// Zero keeps writes unbounded so long pprof profiles can stream.
	writeTO, err := config.ParseDurationField("debug.write_timeout", in.WriteTimeout)
	if err != nil {
		return debugsrv.Config{}, err
	}
	return debugsrv.Config{
		Enabled:              in.Enabled,
		Addr:                 in.DebugAddr(),
		Prefix:               in.Prefix,
		Token:                in.Token,
		AllowInsecure:        in.AllowInsecure,
		ReadTimeout:          readTO,
		WriteTimeout:         writeTO,
		MutexProfileFraction: in.MutexProfileFraction,
		BlockProfileRate:     in.BlockProfileRate,
	}, nil
}
