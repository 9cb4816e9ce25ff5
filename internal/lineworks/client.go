package lineworks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	defaultAPIBaseURL  = "https://www.worksapis.com/v1.0"
	defaultAuthBaseURL = "https://auth.worksmobile.com/oauth2/v2.0"

	// A slow endpoint must not stall an approver.
	requestTimeout = 10 * time.Second

	tokenScope = "bot"
)

// Config holds WORKS bot credentials. Values come from environment-backed
// configuration; PrivateKey accepts literal "\n" escapes as stored in .env
// files.
type Config struct {
	APIBaseURL     string
	AuthBaseURL    string
	ClientID       string
	ClientSecret   string
	ServiceAccount string
	PrivateKey     string
	BotID          string
	ChannelID      string
}

// Complete reports whether every credential required to talk to the bot
// API is present. ChannelID is checked by channel-bound sends only.
func (c Config) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" &&
		c.ServiceAccount != "" && c.PrivateKey != "" && c.BotID != ""
}

// Client is a minimal WORKS bot API client: service-account token
// exchange, attachment registration and upload, and bot message posting.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new WORKS bot client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = defaultAuthBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// assertion builds the RS256 service-account JWT presented at the token
// endpoint.
func (c *Client) assertion() (string, error) {
	pem := strings.ReplaceAll(c.cfg.PrivateKey, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": c.cfg.ClientID,
		"sub": c.cfg.ServiceAccount,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

// accessToken exchanges the signed assertion for a bot-scoped access token.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	assertion, err := c.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"assertion":     {assertion},
		"grant_type":    {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {tokenScope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AuthBaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return body.AccessToken, nil
}

// registerAttachment reserves an attachment slot and returns the upload
// URL with the file id to reference in the message.
func (c *Client) registerAttachment(ctx context.Context, token, fileName string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/bots/%s/attachments", c.cfg.APIBaseURL, c.cfg.BotID)
	payload, _ := json.Marshal(map[string]string{"fileName": fileName})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("register attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("register attachment: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		UploadURL string `json:"uploadUrl"`
		FileID    string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode attachment response: %w", err)
	}
	if body.UploadURL == "" || body.FileID == "" {
		return "", "", fmt.Errorf("attachment response missing uploadUrl or fileId")
	}
	return body.UploadURL, body.FileID, nil
}

// uploadFile streams the file to the reserved upload URL as a multipart
// form with the FileData field the API expects.
func (c *Client) uploadFile(ctx context.Context, token, uploadURL, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("FileData", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload file: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// postMessage sends a bot message to the given API path.
func (c *Client) postMessage(ctx context.Context, token, path string, content interface{}) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post message: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func channelMessagePath(botID, channelID string) string {
	return fmt.Sprintf("/bots/%s/channels/%s/messages", botID, channelID)
}

func userMessagePath(botID, userID string) string {
	return fmt.Sprintf("/bots/%s/users/%s/messages", botID, userID)
}

func textContent(message string) map[string]interface{} {
	return map[string]interface{}{
		"content": map[string]interface{}{"type": "text", "text": message},
	}
}

func fileContent(fileID string) map[string]interface{} {
	return map[string]interface{}{
		"content": map[string]interface{}{"type": "file", "fileId": fileID},
	}
}
