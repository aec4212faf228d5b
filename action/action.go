// Package action defines the single function shape every action conforms
// to and a handful of built-in pocsync actions grounded in the teacher's
// concrete pipeline steps (module/pipeline_step_transform.go,
// module/pipeline_step_http_call.go, module/pipeline_step_log.go).
package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluzky/pocsync/registry"
)

// BuiltinIntegrationName is the integration namespace all pocsync built-in
// actions register under.
const BuiltinIntegrationName = "pocsync.builtin"

// Builtins returns the registry.Integration of built-in pocsync actions:
// a trigger passthrough, a field mapper, an outbound HTTP call, and a log
// sink. httpClient lets callers inject a timeout/transport; passing nil
// uses http.DefaultClient.
func Builtins(logger *slog.Logger, httpClient *http.Client) registry.Integration {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return registry.Integration{
		Name:        BuiltinIntegrationName,
		Description: "Built-in pocsync actions: trigger passthrough, field mapping, HTTP calls, logging",
		Actions: map[string]registry.ActionDefinition{
			"pocsync.webhook.trigger": {
				Name:        "pocsync.webhook.trigger",
				Description: "Identity passthrough used as the first step of a pipeline",
				Executor:    WebhookTrigger,
			},
			"pocsync.transform.map_fields": {
				Name:        "pocsync.transform.map_fields",
				Description: "Renames top-level input fields according to a mapping",
				Executor:    MapFields,
				InputSchema: map[string]any{"required": []string{"mapping"}},
			},
			"pocsync.http.request": {
				Name:        "pocsync.http.request",
				Description: "Performs an outbound HTTP request",
				Executor:    HTTPRequest(httpClient),
				InputSchema: map[string]any{"required": []string{"url"}},
			},
			"pocsync.log.write": {
				Name:        "pocsync.log.write",
				Description: "Writes the input map to the structured logger",
				Executor:    LogWrite(logger),
			},
		},
	}
}

// WebhookTrigger returns its input unchanged. It exists so that every
// pipeline's position-0 step is an action resolvable through the registry
// like any other, rather than a special case in the executor.
func WebhookTrigger(ctx context.Context, input map[string]any) (map[string]any, error) {
	return input, nil
}

// MapFields renames top-level keys of the input according to input["mapping"]
// (a map[string]any of sourceKey -> destKey), grounded on
// module/pipeline_step_transform.go's field-mapping behavior.
func MapFields(ctx context.Context, input map[string]any) (map[string]any, error) {
	rawMapping, _ := input["mapping"].(map[string]any)
	out := make(map[string]any, len(rawMapping))
	for src, dstAny := range rawMapping {
		dst, ok := dstAny.(string)
		if !ok {
			continue
		}
		if v, present := input[src]; present {
			out[dst] = v
		}
	}
	return out, nil
}

// HTTPRequest returns an action that performs an outbound HTTP call using
// input["url"], input["method"] (default GET), and input["headers"].
// It rejects non-http(s) schemes with an "Invalid URL" error, matching
// spec.md scenario S5.
func HTTPRequest(client *http.Client) registry.ActionFunc {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		url, _ := input["url"].(string)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("Invalid URL: %q", url)
		}

		method, _ := input["method"].(string)
		if method == "" {
			method = http.MethodGet
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if headers, ok := input["headers"].(map[string]any); ok {
			for k, v := range headers {
				if s, ok := v.(string); ok {
					req.Header.Set(k, s)
				}
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		return map[string]any{
			"status_code": resp.StatusCode,
		}, nil
	}
}

// LogWrite returns an action that writes the assembled input to logger at
// info level and returns it unchanged, grounded on
// module/pipeline_step_log.go.
func LogWrite(logger *slog.Logger) registry.ActionFunc {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		logger.Info("pocsync.log.write", "input", input, "at", time.Now().UTC().Format(time.RFC3339))
		return input, nil
	}
}
