package lineworks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

// botServer fakes the WORKS auth and bot API surface the dispatcher
// talks to.
type botServer struct {
	mu          sync.Mutex
	tokenCalls  int
	registered  []string
	uploaded    []string
	messages    map[string][]map[string]interface{} // request path -> bodies
	failUpload  bool
	server      *httptest.Server
	lastGrant   string
	lastScope   string
	lastAuth    string
}

func newBotServer(t *testing.T) *botServer {
	t.Helper()
	bs := &botServer{messages: make(map[string][]map[string]interface{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		bs.mu.Lock()
		bs.tokenCalls++
		bs.lastGrant = r.PostFormValue("grant_type")
		bs.lastScope = r.PostFormValue("scope")
		bs.mu.Unlock()
		if r.PostFormValue("assertion") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/bots/bot-1/attachments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bs.mu.Lock()
		bs.registered = append(bs.registered, body["fileName"])
		bs.lastAuth = r.Header.Get("Authorization")
		bs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"uploadUrl": bs.server.URL + "/upload",
			"fileId":    "file-123",
		})
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if bs.failUpload {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("FileData")
		require.NoError(t, err)
		defer file.Close()
		_, _ = io.Copy(io.Discard, file)
		bs.mu.Lock()
		bs.uploaded = append(bs.uploaded, header.Filename)
		bs.mu.Unlock()
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bs.mu.Lock()
		bs.messages[r.URL.Path] = append(bs.messages[r.URL.Path], body)
		bs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})

	bs.server = httptest.NewServer(mux)
	t.Cleanup(bs.server.Close)
	return bs
}

func (bs *botServer) config(t *testing.T) Config {
	return Config{
		APIBaseURL:     bs.server.URL,
		AuthBaseURL:    bs.server.URL,
		ClientID:       "client-1",
		ClientSecret:   "secret",
		ServiceAccount: "svc@works",
		PrivateKey:     testPrivateKeyPEM(t),
		BotID:          "bot-1",
		ChannelID:      "channel-9",
	}
}

func TestDispatcher_SendFileToChannel(t *testing.T) {
	bs := newBotServer(t)
	d := NewDispatcher(bs.config(t), zap.NewNop())

	artifact := filepath.Join(t.TempDir(), "incident_report_7.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("%PDF-1.4 test"), 0644))

	ok := d.SendFileToChannel(context.Background(), artifact)
	require.True(t, ok)

	assert.Equal(t, 1, bs.tokenCalls)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", bs.lastGrant)
	assert.Equal(t, "bot", bs.lastScope)
	assert.Equal(t, []string{"incident_report_7.pdf"}, bs.registered)
	assert.Equal(t, "Bearer test-token", bs.lastAuth)
	assert.Equal(t, []string{"incident_report_7.pdf"}, bs.uploaded)

	msgs := bs.messages["/bots/bot-1/channels/channel-9/messages"]
	require.Len(t, msgs, 1)
	content := msgs[0]["content"].(map[string]interface{})
	assert.Equal(t, "file", content["type"])
	assert.Equal(t, "file-123", content["fileId"])
}

func TestDispatcher_SendFileToChannelUploadFailure(t *testing.T) {
	bs := newBotServer(t)
	bs.failUpload = true
	d := NewDispatcher(bs.config(t), zap.NewNop())

	artifact := filepath.Join(t.TempDir(), "incident_report_8.pdf")
	require.NoError(t, os.WriteFile(artifact, []byte("%PDF-1.4 test"), 0644))

	ok := d.SendFileToChannel(context.Background(), artifact)
	assert.False(t, ok)
	// No message when the upload failed.
	assert.Empty(t, bs.messages["/bots/bot-1/channels/channel-9/messages"])
}

func TestDispatcher_SendTextToChannel(t *testing.T) {
	bs := newBotServer(t)
	d := NewDispatcher(bs.config(t), zap.NewNop())

	ok := d.SendTextToChannel(context.Background(), "【再提出インシデント報告】")
	require.True(t, ok)

	msgs := bs.messages["/bots/bot-1/channels/channel-9/messages"]
	require.Len(t, msgs, 1)
	content := msgs[0]["content"].(map[string]interface{})
	assert.Equal(t, "text", content["type"])
	assert.Equal(t, "【再提出インシデント報告】", content["text"])
}

func TestDispatcher_SendTextToUser(t *testing.T) {
	bs := newBotServer(t)
	d := NewDispatcher(bs.config(t), zap.NewNop())

	ok := d.SendTextToUser(context.Background(), "tanaka@works", "差し戻しがあります")
	require.True(t, ok)

	msgs := bs.messages["/bots/bot-1/users/tanaka@works/messages"]
	require.Len(t, msgs, 1)

	// An empty account means the reporter has no messaging address; the
	// send is skipped.
	assert.False(t, d.SendTextToUser(context.Background(), "", "ignored"))
}

func TestDispatcher_MissingConfigSkips(t *testing.T) {
	d := NewDispatcher(Config{}, zap.NewNop())

	assert.False(t, d.SendTextToChannel(context.Background(), "msg"))
	assert.False(t, d.SendFileToChannel(context.Background(), "/nonexistent.pdf"))
	assert.False(t, d.SendTextToUser(context.Background(), "user@works", "msg"))
}
