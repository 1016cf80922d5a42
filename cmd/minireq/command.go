package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/keboola/go-minireq/pkg/client"
	"github.com/keboola/go-minireq/pkg/client/trace"
	"github.com/keboola/go-minireq/pkg/notify"
	"github.com/keboola/go-minireq/pkg/request"
)

// output printed to stdout.
type output struct {
	StatusCode int                 `json:"statusCode"`
	Header     map[string][]string `json:"header,omitempty"`
	Cookies    []string            `json:"cookies,omitempty"`
	Data       any                 `json:"data"`
}

// newRootCommand creates the command, clientOpts are appended to the options derived from the config.
func newRootCommand(stdout, stderr io.Writer, clientOpts ...client.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "minireq [flags] <uri>",
		Short:         "Send one HTTP request and print the response as JSON.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		logger := logrus.New()
		logger.SetOutput(stderr)

		err := func() error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.Verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return send(cmd.Context(), cfg, args[0], stdout, stderr, logger, clientOpts)
		}()
		if err != nil {
			logger.Error(err)
		}
		return err
	}
	return cmd
}

func send(ctx context.Context, cfg config, uri string, stdout, stderr io.Writer, logger logrus.FieldLogger, clientOpts []client.Option) error {
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithNotifier(notify.NewCoordinator(notify.NewLogNotifier(logger))),
	}
	switch cfg.Trace {
	case traceLog:
		opts = append(opts, client.WithTrace(trace.LogTracer(stderr)))
	case traceDump:
		opts = append(opts, client.WithTrace(trace.DumpTracer(stderr)))
	}
	opts = append(opts, clientOpts...)

	// An absolute uri overrides the base URL
	call := request.CallConfig{URI: uri, Method: cfg.Method, Header: cfg.Header}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		call = call.WithBaseURL(uri).WithURI("")
	}
	if cfg.Data != "" {
		call = call.WithData(parseData(cfg.Data))
	}
	if cfg.Loading != "" {
		call = call.WithLoading(cfg.Loading)
	}

	c := client.New(cfg.BaseURL, request.ClientConfig{}, opts...)
	pending, err := c.Request(ctx, call)
	if err != nil {
		return err
	}

	// The ctx cancellation aborts the request, so the outcome is always delivered
	res, err := pending.Wait(context.Background())
	var statusErr *request.StatusError
	if errors.As(err, &statusErr) {
		res = statusErr.Response
	}
	if res != nil {
		if printErr := printResponse(stdout, res); printErr != nil {
			return printErr
		}
	}
	return err
}

// parseData decodes JSON data, other values are sent as a string.
func parseData(data string) any {
	var out any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(data, &out); err == nil {
		if _, ok := out.(map[string]any); ok {
			return out
		}
		if _, ok := out.([]any); ok {
			return out
		}
	}
	return data
}

func printResponse(wr io.Writer, res *request.Response) error {
	content, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(output{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Cookies:    res.Cookies,
		Data:       res.Data,
	})
	if err != nil {
		return fmt.Errorf("cannot encode response: %w", err)
	}

	// JsonIter MarshalIndent does not indent nested arrays correctly
	var out bytes.Buffer
	if err := json.Indent(&out, content, "", "  "); err != nil {
		return fmt.Errorf("cannot encode response: %w", err)
	}
	_, err = fmt.Fprintln(wr, out.String())
	return err
}
