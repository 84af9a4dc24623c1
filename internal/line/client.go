package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// MaxContentBytes caps a downloaded media file.
const MaxContentBytes = 10 << 20

var (
	ErrNoTarget  = errors.New("line: no target")
	ErrNoMediaID = errors.New("line: no media id")
)

// Client sends messages and downloads message content through the official SDK.
type Client struct {
	api  *messaging_api.MessagingApiAPI
	blob *messaging_api.MessagingApiBlobAPI
}

// Options overrides SDK endpoints. Zero values keep the SDK defaults.
type Options struct {
	Endpoint     string
	BlobEndpoint string
	HTTPClient   *http.Client
}

func NewClient(channelAccessToken string, opts Options) (*Client, error) {
	var apiOpts []messaging_api.MessagingApiAPIOption
	var blobOpts []messaging_api.MessagingApiBlobAPIOption
	if opts.Endpoint != "" {
		apiOpts = append(apiOpts, messaging_api.WithEndpoint(opts.Endpoint))
	}
	if opts.BlobEndpoint != "" {
		blobOpts = append(blobOpts, messaging_api.WithBlobEndpoint(opts.BlobEndpoint))
	}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, messaging_api.WithHTTPClient(opts.HTTPClient))
		blobOpts = append(blobOpts, messaging_api.WithBlobHTTPClient(opts.HTTPClient))
	}

	api, err := messaging_api.NewMessagingApiAPI(channelAccessToken, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelAccessToken, blobOpts...)
	if err != nil {
		return nil, fmt.Errorf("create blob api client: %w", err)
	}
	return &Client{api: api, blob: blob}, nil
}

// Reply answers an event with its reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return ErrNoTarget
	}
	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// Push sends text to a user, group or room id.
func (c *Client) Push(ctx context.Context, to, text string) error {
	if to == "" {
		return ErrNoTarget
	}
	_, err := c.api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
	}, "")
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// FetchContent downloads the binary content of a message (image, file...).
func (c *Client) FetchContent(ctx context.Context, messageID string) ([]byte, error) {
	if messageID == "" {
		return nil, ErrNoMediaID
	}
	resp, err := c.blob.WithContext(ctx).GetMessageContent(messageID)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("get message content %s: %w", messageID, err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read message content %s: %w", messageID, err)
	}
	if len(data) > MaxContentBytes {
		return nil, fmt.Errorf("message content %s exceeds %d bytes", messageID, MaxContentBytes)
	}
	return data, nil
}
