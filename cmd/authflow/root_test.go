package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/authapi/authapitest"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeRe = regexp.MustCompile(`correo: (\d{5})`)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func waitFor(t *testing.T, out *lockedBuffer, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), substr)
	}, 5*time.Second, 10*time.Millisecond, "waiting for %q", substr)
}

func otherCode(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		return code[:len(code)-1] + "0"
	}
	return code[:len(code)-1] + string(last+1)
}

func newAccountServer(t *testing.T) *authapitest.Server {
	t.Helper()
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	_, err := srv.AddAccount("Ana", "Pérez", "ana@example.com", "Passw0rd!")
	require.NoError(t, err)
	return srv
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	srv := newAccountServer(t)

	out, err := run(t, "Passw0rd!\n", "login", "--service-url", srv.URL, "--email", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, authapitest.MessageLoggedIn)
	assert.Contains(t, out, "Ana <")
}

func TestLoginBadCredentialsIsReported(t *testing.T) {
	srv := newAccountServer(t)

	out, err := run(t, "", "login", "--service-url", srv.URL, "--email", "ana@example.com", "--password", "wrong")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Credenciales inválidas (400)")
}

func TestLoginWithoutServiceFails(t *testing.T) {
	out, err := run(t, "", "login", "--email", "ana@example.com", "--password", "x")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Error al iniciar sesión")
}

func TestRegisterPromptsForMissingFields(t *testing.T) {
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)

	out, err := run(t, "Ana\nPérez\nana@example.com\nPassw0rd!\n", "register", "--service-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Name: ")
	assert.Contains(t, out, authapitest.MessageRegistered)

	out, err = run(t, "", "login", "--service-url", srv.URL, "--email", "ana@example.com", "--password", "Passw0rd!")
	require.NoError(t, err)
	assert.Contains(t, out, authapitest.MessageLoggedIn)
}

func TestRegisterDuplicateIsReported(t *testing.T) {
	srv := newAccountServer(t)

	_, err := run(t, "", "register", "--service-url", srv.URL,
		"--name", "Ana", "--last-name", "Pérez", "--email", "ana@example.com", "--password", "Passw0rd!")
	require.ErrorIs(t, err, errReported)
}

func TestInteractiveResetWalksAllSteps(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	inR, inW := io.Pipe()
	t.Cleanup(func() { _ = inW.Close() })
	out := &lockedBuffer{}

	cmd := newRootCmd(inR, out, io.Discard)
	cmd.SetArgs([]string{"reset"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(context.Background()) }()

	send := func(line string) {
		_, err := io.WriteString(inW, line+"\n")
		require.NoError(t, err)
	}

	send("   ")
	waitFor(t, out, "Debes ingresar un correo.")

	send("ana@example.com")
	waitFor(t, out, "Código enviado a tu correo")
	m := codeRe.FindStringSubmatch(out.String())
	require.Len(t, m, 2)
	code := m[1]

	send(otherCode(code))
	waitFor(t, out, "Código incorrecto.")

	send(code)
	waitFor(t, out, "Código verificado correctamente.")

	send("corta")
	waitFor(t, out, "al menos 8 caracteres")

	send("Passw0rd!")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reset did not finish")
	}
	assert.Contains(t, out.String(), "Contraseña cambiada correctamente")
}

func TestInteractiveResetStopsAtEOF(t *testing.T) {
	_, err := run(t, "\n", "reset")
	require.ErrorIs(t, err, io.EOF)
}

func TestStepwiseResetSharesRedisSession(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := run(t, "", "reset", "start", "--redis-addr", mr.Addr(), "--email", "ana@example.com")
	require.NoError(t, err)
	m := codeRe.FindStringSubmatch(out)
	require.Len(t, m, 2)
	code := m[1]
	assert.Contains(t, out, "válido 1 minuto")

	out, err = run(t, "", "reset", "verify", "--redis-addr", mr.Addr(), "--code", otherCode(code))
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Código incorrecto.")

	out, err = run(t, "", "reset", "verify", "--redis-addr", mr.Addr(), "--code", code)
	require.NoError(t, err)
	assert.Contains(t, out, "Código verificado correctamente.")

	out, err = run(t, "Passw0rd!\n", "reset", "finish", "--redis-addr", mr.Addr(), "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "Contraseña cambiada correctamente")

	out, err = run(t, "", "reset", "verify", "--redis-addr", mr.Addr(), "--code", code)
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, noResetSession)
}

func TestStrictFinishNeedsVerifiedCode(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := run(t, "", "reset", "start", "--redis-addr", mr.Addr(), "--email", "ana@example.com")
	require.NoError(t, err)

	out, err := run(t, "", "reset", "finish", "--redis-addr", mr.Addr(), "--strict", "--password", "Passw0rd!")
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Debes verificar el código")
}

func TestStepCommandsNeedRedis(t *testing.T) {
	_, err := run(t, "", "reset", "start", "--email", "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--redis-addr")
}

func TestConfigFileSelectsLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("messages:\n  language: en\n"), 0o600))

	out, err := run(t, "\n", "--config", path, "reset")
	require.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out, "You must enter an email.")
}

func TestEnvironmentSelectsLanguage(t *testing.T) {
	t.Setenv("AUTHFLOW_MESSAGES_LANGUAGE", "en")

	out, err := run(t, "\n", "reset")
	require.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out, "You must enter an email.")
}

func TestMissingConfigFileIsAnError(t *testing.T) {
	_, err := run(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "", "--log-level", "loud", "reset")
	require.Error(t, err)
}

func TestFakeServerServesLogin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	cmd := newRootCmd(strings.NewReader(""), out, io.Discard)
	cmd.SetArgs([]string{"fake-server", "--addr", "127.0.0.1:0", "--account", "Ana:Pérez:ana@example.com:Passw0rd!"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	waitFor(t, out, "listening on http://")
	url := regexp.MustCompile(`http://\S+`).FindString(out.String())
	require.NotEmpty(t, url)

	loginOut, err := run(t, "", "login", "--service-url", url, "--email", "ana@example.com", "--password", "Passw0rd!")
	require.NoError(t, err)
	assert.Contains(t, loginOut, authapitest.MessageLoggedIn)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("fake-server did not stop")
	}
}

func TestFakeServerRejectsMalformedAccount(t *testing.T) {
	_, err := run(t, "", "fake-server", "--addr", "127.0.0.1:0", "--account", "ana@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name:lastname:email:password")
}

func TestPromptTrimsLineEndings(t *testing.T) {
	var out bytes.Buffer
	a := &app{in: bufio.NewReader(strings.NewReader("ana\r\nlast")), out: &out}

	v, err := a.prompt("Email")
	require.NoError(t, err)
	assert.Equal(t, "ana", v)

	v, err = a.prompt("Email")
	require.NoError(t, err)
	assert.Equal(t, "last", v)

	_, err = a.prompt("Email")
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Email: Email: Email: ", out.String())
}
