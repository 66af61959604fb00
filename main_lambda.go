//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tidwall/gjson"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// The cache lives as long as the warm container.
var lambdaCache = sync.OnceValue(func() *SuggestionCache {
	return NewSuggestionCache(NewEngine(DefaultCatalog(), DefaultConfig()))
})

func handler(_ context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}
	if !gjson.Valid(body) {
		return errResp(400, "invalid JSON")
	}

	cache := lambdaCache()
	engine := cache.engine
	c := engine.Catalog()

	root := gjson.Parse(body)
	req, err := parseRequestValue(c, root)
	if err != nil {
		return errResp(400, err.Error())
	}
	if err := req.CheckQueue(); errors.Is(err, ErrQueueFull) {
		return errResp(422, err.Error())
	}

	settings := DefaultSettings()
	if raw := root.Get("settings"); raw.Exists() {
		if settings, err = decodeSettings([]byte(raw.Raw), formatJSON); err != nil {
			return errResp(400, "invalid settings: "+err.Error())
		}
		if err := settings.Validate(c); err != nil {
			return errResp(400, "invalid settings: "+err.Error())
		}
	}

	combo := cache.Suggest(settings, req.Stash, req.Queue)
	res := engine.Describe(settings, req.Stash, req.Queue, combo)
	respJSON, _ := json.Marshal(NewSuggestResponse(c, res, req.Queue))
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	if err := initLogger(false); err != nil {
		panic(err)
	}
	lambda.Start(handler)
}
