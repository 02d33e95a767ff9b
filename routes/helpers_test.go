package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meinhoongagan/spa-app/config"
	"github.com/meinhoongagan/spa-app/controllers"
	"github.com/meinhoongagan/spa-app/realtime"
	"github.com/meinhoongagan/spa-app/routes"
	"github.com/meinhoongagan/spa-app/testutil"
	"github.com/meinhoongagan/spa-app/utils"
)

const testSecret = "test-secret"

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	fail    bool
}

func (u *fakeUploader) Upload(_ context.Context, file interface{}, publicID, folder string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail {
		return "", errors.New("cloudinary: upload rejected")
	}
	if r, ok := file.(io.Reader); ok {
		_, _ = io.Copy(io.Discard, r)
	}
	url := fmt.Sprintf("https://cdn.test/%s/%s", folder, publicID)
	u.uploads = append(u.uploads, url)
	return url, nil
}

type mail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail{to, subject, body})
	return nil
}

func (m *fakeMailer) last() mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mail{}
	}
	return m.sent[len(m.sent)-1]
}

type env struct {
	app      *fiber.App
	uploader *fakeUploader
	mailer   *fakeMailer
	broker   *realtime.LocalBroker
}

type option func(*config.Config)

func newEnv(t *testing.T, opts ...option) *env {
	t.Helper()
	testutil.SetupDB(t)

	cfg := config.Defaults()
	cfg.Env = "test"
	cfg.JWTSecret = testSecret
	cfg.LoginRate = 1000
	cfg.LoginBurst = 1000
	for _, o := range opts {
		o(cfg)
	}
	prev := config.Get()
	config.Set(cfg)

	e := &env{
		uploader: &fakeUploader{},
		mailer:   &fakeMailer{},
		broker:   realtime.NewLocalBroker(32),
	}
	prevBroker, prevCost := realtime.Default, controllers.PasswordCost
	realtime.Default = e.broker
	controllers.PasswordCost = bcrypt.MinCost
	utils.ImageUploader = e.uploader
	utils.DefaultMailer = e.mailer

	t.Cleanup(func() {
		config.Set(prev)
		realtime.Default = prevBroker
		controllers.PasswordCost = prevCost
		utils.ImageUploader = nil
		utils.DefaultMailer = nil
		_ = e.broker.Close()
	})

	e.app = routes.NewApp()
	return e
}

type response struct {
	status int
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	var e utils.ErrorResponse
	r.decode(t, &e)
	return e.Code
}

func (e *env) do(t *testing.T, req *http.Request, token string) response {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: body}
}

func (e *env) json(t *testing.T, method, path, token string, payload any) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(t, req, token)
}

// form sends a multipart body; a "file:" prefixed key is sent as a file
func (e *env) form(t *testing.T, method, path, token string, fields map[string]string) response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, "file:"); ok {
			fw, err := w.CreateFormFile(name, name+".jpg")
			require.NoError(t, err)
			_, err = fw.Write([]byte(v))
			require.NoError(t, err)
			continue
		}
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(t, req, token)
}

type authResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Role        string `json:"role"`
	} `json:"user"`
	Session struct {
		Stack         string   `json:"stack"`
		InitialScreen string   `json:"initialScreen"`
		Screens       []string `json:"screens"`
	} `json:"session"`
}

const goodPassword = "Spa123@"

func (e *env) register(t *testing.T, email, name, role string) authResponse {
	t.Helper()
	payload := map[string]string{
		"email":           email,
		"password":        goodPassword,
		"confirmPassword": goodPassword,
		"displayName":     name,
		"role":            role,
	}
	if role == "admin" {
		payload["adminCode"] = "ADMIN123"
	}
	resp := e.json(t, "POST", "/auth/register", "", payload)
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var out authResponse
	resp.decode(t, &out)
	return out
}

// accessToken signs a token for a principal that may have no records
func accessToken(t *testing.T, id, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    id,
		"email": email,
		"typ":   "access",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func receive(t *testing.T, sub realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return realtime.Event{}
}
