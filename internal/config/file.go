package config

import "time"

// FileConfig mirrors the YAML file. Pointers distinguish absent keys from zero values.
type FileConfig struct {
	DataDir   *string `yaml:"dataDir"`
	LogLevel  *string `yaml:"logLevel"`
	LogFormat *string `yaml:"logFormat"`

	Server    *ServerFile    `yaml:"server"`
	Store     *StoreFile     `yaml:"store"`
	Cache     *CacheFile     `yaml:"cache"`
	Auth      *AuthFile      `yaml:"auth"`
	Gate      *GateFile      `yaml:"gate"`
	Telemetry *TelemetryFile `yaml:"telemetry"`
}

type ServerFile struct {
	Listen            *string        `yaml:"listen"`
	ReadHeaderTimeout *time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       *time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   *time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins       []string       `yaml:"corsOrigins"`
	TrustedProxies    []string       `yaml:"trustedProxies"`
	RateLimit         *struct {
		Enabled           *bool `yaml:"enabled"`
		RequestsPerMinute *int  `yaml:"requestsPerMinute"`
	} `yaml:"rateLimit"`
}

type StoreFile struct {
	Backend *string `yaml:"backend"`
	Path    *string `yaml:"path"`
}

type CacheFile struct {
	Backend *string        `yaml:"backend"`
	TTL     *time.Duration `yaml:"ttl"`
	Redis   *struct {
		Addr     *string `yaml:"addr"`
		Password *string `yaml:"password"`
		DB       *int    `yaml:"db"`
	} `yaml:"redis"`
}

type AuthFile struct {
	JWTSecret    *string        `yaml:"jwtSecret"`
	TokenTTL     *time.Duration `yaml:"tokenTTL"`
	AllowSignup  *bool          `yaml:"allowSignup"`
	CookieSecure *bool          `yaml:"cookieSecure"`
	Bootstrap    *struct {
		Username *string `yaml:"username"`
		Password *string `yaml:"password"`
	} `yaml:"bootstrap"`
	Login *struct {
		Rate  *float64 `yaml:"rate"`
		Burst *int     `yaml:"burst"`
	} `yaml:"login"`
}

type GateFile struct {
	Threshold      *int           `yaml:"threshold"`
	ButtonDuration *time.Duration `yaml:"buttonDuration"`
	VideoDuration  *time.Duration `yaml:"videoDuration"`
	Tick           *time.Duration `yaml:"tick"`
	ShowCancel     *bool          `yaml:"showCancel"`
	UnlockMode     *string        `yaml:"unlockMode"`
	SessionTTL     *time.Duration `yaml:"sessionTTL"`
	SweepInterval  *time.Duration `yaml:"sweepInterval"`
	AssistURL      *string        `yaml:"assistUrl"`
	EnforceLinks   *bool          `yaml:"enforceLinks"`
}

type TelemetryFile struct {
	Enabled      *bool    `yaml:"enabled"`
	ServiceName  *string  `yaml:"serviceName"`
	Exporter     *string  `yaml:"exporter"`
	Endpoint     *string  `yaml:"endpoint"`
	SamplingRate *float64 `yaml:"samplingRate"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (l *Loader) mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	set(&cfg.DataDir, f.DataDir)
	set(&cfg.LogLevel, f.LogLevel)
	set(&cfg.LogFormat, f.LogFormat)

	if s := f.Server; s != nil {
		set(&cfg.Server.ListenAddr, s.Listen)
		set(&cfg.Server.ReadHeaderTimeout, s.ReadHeaderTimeout)
		set(&cfg.Server.IdleTimeout, s.IdleTimeout)
		set(&cfg.Server.ShutdownTimeout, s.ShutdownTimeout)
		if s.CORSOrigins != nil {
			cfg.Server.CORSOrigins = append([]string(nil), s.CORSOrigins...)
		}
		if s.TrustedProxies != nil {
			cfg.Server.TrustedProxies = append([]string(nil), s.TrustedProxies...)
		}
		if rl := s.RateLimit; rl != nil {
			set(&cfg.Server.RateLimitEnabled, rl.Enabled)
			set(&cfg.Server.RateLimitRPM, rl.RequestsPerMinute)
		}
	}
	if s := f.Store; s != nil {
		set(&cfg.Store.Backend, s.Backend)
		set(&cfg.Store.Path, s.Path)
	}
	if c := f.Cache; c != nil {
		set(&cfg.Cache.Backend, c.Backend)
		set(&cfg.Cache.TTL, c.TTL)
		if r := c.Redis; r != nil {
			set(&cfg.Cache.RedisAddr, r.Addr)
			set(&cfg.Cache.RedisPassword, r.Password)
			set(&cfg.Cache.RedisDB, r.DB)
		}
	}
	if a := f.Auth; a != nil {
		set(&cfg.Auth.JWTSecret, a.JWTSecret)
		set(&cfg.Auth.TokenTTL, a.TokenTTL)
		set(&cfg.Auth.AllowSignup, a.AllowSignup)
		set(&cfg.Auth.CookieSecure, a.CookieSecure)
		if b := a.Bootstrap; b != nil {
			set(&cfg.Auth.BootstrapUsername, b.Username)
			set(&cfg.Auth.BootstrapPassword, b.Password)
		}
		if lg := a.Login; lg != nil {
			set(&cfg.Auth.LoginRate, lg.Rate)
			set(&cfg.Auth.LoginBurst, lg.Burst)
		}
	}
	if g := f.Gate; g != nil {
		set(&cfg.Gate.Threshold, g.Threshold)
		set(&cfg.Gate.ButtonDuration, g.ButtonDuration)
		set(&cfg.Gate.VideoDuration, g.VideoDuration)
		set(&cfg.Gate.Tick, g.Tick)
		set(&cfg.Gate.ShowCancel, g.ShowCancel)
		set(&cfg.Gate.UnlockMode, g.UnlockMode)
		set(&cfg.Gate.SessionTTL, g.SessionTTL)
		set(&cfg.Gate.SweepInterval, g.SweepInterval)
		set(&cfg.Gate.AssistURL, g.AssistURL)
		set(&cfg.Gate.EnforceLinks, g.EnforceLinks)
	}
	if t := f.Telemetry; t != nil {
		set(&cfg.Telemetry.Enabled, t.Enabled)
		set(&cfg.Telemetry.ServiceName, t.ServiceName)
		set(&cfg.Telemetry.Exporter, t.Exporter)
		set(&cfg.Telemetry.Endpoint, t.Endpoint)
		set(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}
