package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/ndidit/notifyhub/internal/dtos"
)

const fcmV1URLTemplate = "https://fcm.googleapis.com/v1/projects/%s/messages:send"

type PushProvider struct {
	projectID   string
	httpClient  *http.Client
	credentials *google.Credentials
}

func NewPushProvider(ctx context.Context, projectID string, serviceAccountJSON []byte) (*PushProvider, error) {
	creds, err := google.CredentialsFromJSON(ctx, serviceAccountJSON, "https://www.googleapis.com/auth/firebase.messaging")
	if err != nil {
		return nil, fmt.Errorf("load FCM credentials: %w", err)
	}

	return &PushProvider{
		projectID:   projectID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		credentials: creds,
	}, nil
}

var _ Provider = (*PushProvider)(nil)

type fcmMessage struct {
	Message fcmMessagePayload `json:"message"`
}

type fcmMessagePayload struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Android      *fcmAndroidConfig `json:"android,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroidConfig struct {
	Priority string `json:"priority,omitempty"`
}

type fcmResponse struct {
	Name  string `json:"name"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *PushProvider) Send(ctx context.Context, recipient, subject, body string, msg *dtos.QueueMessage) (*SendResponse, error) {
	token, err := p.credentials.TokenSource.Token()
	if err != nil {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMAuthFailed", err.Error(), true)
	}

	priority := "normal"
	if msg.Priority >= 5 {
		priority = "high"
	}

	payload := fcmMessage{Message: fcmMessagePayload{
		Token:        recipient,
		Notification: fcmNotification{Title: subject, Body: body},
		Android:      &fcmAndroidConfig{Priority: priority},
	}}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, dtos.NewFailure(dtos.KindTerminalDelivery, "FCMMarshalFailed", err.Error(), false)
	}

	url := fmt.Sprintf(fcmV1URLTemplate, p.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMRequestFailed", err.Error(), true)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMSendFailed", err.Error(), true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMReadFailed", err.Error(), true)
	}

	var fcmResp fcmResponse
	if err := json.Unmarshal(respBody, &fcmResp); err != nil {
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMUnmarshalFailed", err.Error(), true)
	}

	if fcmResp.Error != nil {
		retryable := resp.StatusCode >= 500
		if fcmResp.Error.Status == "UNREGISTERED" || fcmResp.Error.Status == "INVALID_ARGUMENT" {
			return nil, dtos.NewFailure(dtos.KindTerminalDelivery, "FCMInvalidToken", fcmResp.Error.Message, false)
		}
		return nil, dtos.NewFailure(dtos.KindTransientDelivery, "FCMProviderError", fcmResp.Error.Message, retryable)
	}

	return &SendResponse{ProviderMessageID: fcmResp.Name}, nil
}
