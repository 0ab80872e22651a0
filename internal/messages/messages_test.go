package messages

import "testing"

func TestSpanishIsDefault(t *testing.T) {
	c, err := NewCatalog("")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	cases := map[string]string{
		EmailRequired:     "Debes ingresar un correo.",
		ResetNoCode:       "No se ha generado un código todavía.",
		ResetCodeExpired:  "El código ha expirado. Solicita uno nuevo.",
		ResetCodeMismatch: "Código incorrecto.",
		ResetCodeVerified: "Código verificado correctamente.",
		PasswordChanged:   "Contraseña cambiada correctamente. Ahora puedes iniciar sesión.",
		TokenMissing:      "Token no recibido desde el servidor",
		LoginSuccess:      "Login exitoso",
	}
	for id, want := range cases {
		if got := c.Text(id, nil); got != want {
			t.Fatalf("Text(%s) = %q, want %q", id, got, want)
		}
	}
}

func TestTemplateData(t *testing.T) {
	c, err := NewCatalog("es")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	if got := c.Text(PasswordTooShort, map[string]any{"Min": 8}); got != "La contraseña debe tener al menos 8 caracteres." {
		t.Fatalf("unexpected password message %q", got)
	}
	if got := c.Text(ServiceStatus, map[string]any{"Status": 418}); got != "Error HTTP 418" {
		t.Fatalf("unexpected status message %q", got)
	}
}

func TestPluralForms(t *testing.T) {
	c, err := NewCatalog("es")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	one := c.Plural(ResetCodeSent, 1, map[string]any{"Code": "12345"})
	if one != "Código enviado a tu correo: 12345 (válido 1 minuto)" {
		t.Fatalf("unexpected singular form %q", one)
	}
	five := c.Plural(ResetCodeSent, 5, map[string]any{"Code": "12345"})
	if five != "Código enviado a tu correo: 12345 (válido 5 minutos)" {
		t.Fatalf("unexpected plural form %q", five)
	}
}

func TestEnglishAndFallback(t *testing.T) {
	c, err := NewCatalog("en")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if got := c.Text(ResetCodeMismatch, nil); got != "Incorrect code." {
		t.Fatalf("unexpected english text %q", got)
	}

	unknown, err := NewCatalog("ja")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if got := unknown.Text(ResetCodeMismatch, nil); got != "Código incorrecto." {
		t.Fatalf("expected spanish fallback, got %q", got)
	}
	if got := unknown.Text("NoSuchMessage", nil); got != "NoSuchMessage" {
		t.Fatalf("expected identifier fallback, got %q", got)
	}
}
