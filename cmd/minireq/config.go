package main

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MINIREQ"

const (
	traceNone = ""
	traceLog  = "log"
	traceDump = "dump"
)

var allowedMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// config of the command, loaded from flags, environment and an optional config file.
type config struct {
	BaseURL string
	Method  string
	Header  map[string]string
	Data    string
	Trace   string
	Loading string
	Verbose bool
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file, for example minireq.yaml")
	flags.String("base-url", "", "base URL, prepended to the uri argument")
	flags.StringP("method", "X", http.MethodGet, "HTTP method")
	flags.StringArrayP("header", "H", nil, `request header in "Name: value" format, can be repeated`)
	flags.StringP("data", "d", "", "request data, JSON is decoded, GET data is sent as query")
	flags.String("trace", traceNone, `print request trace to stderr: "log" or "dump"`)
	flags.String("loading", "", "title of the loading indicator")
	flags.BoolP("verbose", "v", false, "enable debug logs")
}

// loadConfig merges flags, MINIREQ_* environment variables and the config file, flags win.
func loadConfig(flags *pflag.FlagSet) (config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return config{}, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf(`cannot read config file "%s": %w`, path, err)
		}
	}

	cfg := config{
		BaseURL: v.GetString("base-url"),
		Method:  strings.ToUpper(v.GetString("method")),
		Header:  make(map[string]string),
		Data:    v.GetString("data"),
		Trace:   v.GetString("trace"),
		Loading: v.GetString("loading"),
		Verbose: v.GetBool("verbose"),
	}

	// Validate and parse
	errs := &multierror.Error{}
	if !slices.Contains(allowedMethods, cfg.Method) {
		errs = multierror.Append(errs, fmt.Errorf(`method "%s" is not supported, expected one of: %s`, cfg.Method, strings.Join(allowedMethods, ", ")))
	}
	for _, header := range v.GetStringSlice("header") {
		name, value, found := strings.Cut(header, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			errs = multierror.Append(errs, fmt.Errorf(`header "%s" is not valid, expected "Name: value"`, header))
			continue
		}
		cfg.Header[http.CanonicalHeaderKey(name)] = strings.TrimSpace(value)
	}
	switch cfg.Trace {
	case traceNone, traceLog, traceDump:
	default:
		errs = multierror.Append(errs, fmt.Errorf(`trace "%s" is not supported, expected "log" or "dump"`, cfg.Trace))
	}

	return cfg, errs.ErrorOrNil()
}
