package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const TargetTypePage = "page"

// objectGroup tags every remote object handle we create so a finished
// attempt can release them in one call.
const objectGroup = "tekup-autologin"

type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type exceptionDetails struct {
	Text      string        `json:"text"`
	Exception *remoteObject `json:"exception,omitempty"`
}

// runtimeResult is the shape shared by Runtime.evaluate and
// Runtime.callFunctionOn responses.
type runtimeResult struct {
	Result           remoteObject      `json:"result"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

func (r runtimeResult) err() error {
	if r.ExceptionDetails == nil {
		return nil
	}
	if ex := r.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
		// first line only, the rest is a stack trace
		desc, _, _ := strings.Cut(ex.Description, "\n")
		return errors.New(desc)
	}
	return errors.New(r.ExceptionDetails.Text)
}

// decodeHandle extracts the object id from an evaluate response. A null
// result yields an empty id and no error.
func decodeHandle(raw json.RawMessage) (string, error) {
	var res runtimeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode runtime result: %w", err)
	}
	if err := res.err(); err != nil {
		return "", err
	}
	if res.Result.Subtype == "null" || res.Result.Type == "undefined" {
		return "", nil
	}
	return res.Result.ObjectID, nil
}

// decodeValue unmarshals a returnByValue result into out. out may be nil.
func decodeValue(raw json.RawMessage, out any) error {
	var res runtimeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("decode runtime result: %w", err)
	}
	if err := res.err(); err != nil {
		return err
	}
	if out == nil || len(res.Result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(res.Result.Value, out)
}

func querySelectorExpr(selector string) string {
	quoted, _ := json.Marshal(selector)
	return "document.querySelector(" + string(quoted) + ")"
}

func evaluateHandle(ctx context.Context, expression string) (string, error) {
	var raw json.RawMessage
	if err := chromedp.FromContext(ctx).Target.Execute(ctx, "Runtime.evaluate", map[string]any{
		"expression":  expression,
		"objectGroup": objectGroup,
	}, &raw); err != nil {
		return "", err
	}
	return decodeHandle(raw)
}

func callFunctionOn(ctx context.Context, objectID, fn string, out any, args ...any) error {
	arguments := make([]map[string]any, 0, len(args))
	for _, a := range args {
		arguments = append(arguments, map[string]any{"value": a})
	}
	var raw json.RawMessage
	if err := chromedp.FromContext(ctx).Target.Execute(ctx, "Runtime.callFunctionOn", map[string]any{
		"functionDeclaration": fn,
		"objectId":            objectID,
		"arguments":           arguments,
		"returnByValue":       true,
	}, &raw); err != nil {
		return err
	}
	return decodeValue(raw, out)
}

func releaseObjectGroup(ctx context.Context) error {
	return chromedp.FromContext(ctx).Target.Execute(ctx, "Runtime.releaseObjectGroup", map[string]any{
		"objectGroup": objectGroup,
	}, nil)
}

// ReloadPage reloads the tab and waits for the new document to become
// interactive.
func ReloadPage(ctx context.Context) error {
	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return page.Reload().Do(ctx)
		}),
	); err != nil {
		return err
	}
	return waitReady(ctx)
}

func waitReady(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var state string
			err := chromedp.Run(ctx,
				chromedp.Evaluate("document.readyState", &state),
			)
			if err == nil && (state == "interactive" || state == "complete") {
				return nil
			}
		}
	}
}
