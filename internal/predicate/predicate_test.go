package predicate

import "testing"

func mustCompile(t *testing.T, expr string) Predicate {
	t.Helper()
	p, err := Compile(expr)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", expr, err)
	}
	return p
}

func TestEquality(t *testing.T) {
	p := mustCompile(t, `event.type == "login"`)

	if !p(map[string]any{"event": map[string]any{"type": "login"}}) {
		t.Error("expected match")
	}
	if p(map[string]any{"event": map[string]any{"type": "logout"}}) {
		t.Error("expected no match")
	}
}

func TestEqualityNoTypeCoercion(t *testing.T) {
	p := mustCompile(t, `count == "5"`)
	if p(map[string]any{"count": float64(5)}) {
		t.Error("number should not equal string literal")
	}
}

func TestEqualityNumericKindsUnify(t *testing.T) {
	p := mustCompile(t, `count == 5`)
	if !p(map[string]any{"count": float64(5)}) {
		t.Error("float64(5) should equal integer literal 5")
	}
	if !p(map[string]any{"count": 5}) {
		t.Error("int(5) should equal integer literal 5")
	}
}

func TestAbsentField(t *testing.T) {
	eq := mustCompile(t, `a.b == "x"`)
	neq := mustCompile(t, `a.b != "x"`)

	if eq(map[string]any{}) {
		t.Error("absent field should not equal any literal")
	}
	if !neq(map[string]any{}) {
		t.Error("absent field should satisfy != by default")
	}
}

func TestExplicitNullVsAbsent(t *testing.T) {
	eqNull := mustCompile(t, `a == null`)

	if eqNull(map[string]any{}) {
		t.Error("absent field must not equal explicit null literal")
	}
	if !eqNull(map[string]any{"a": nil}) {
		t.Error("explicit null field must equal explicit null literal")
	}
}

func TestIn(t *testing.T) {
	p := mustCompile(t, `event.type in ["login", "logout", 3]`)

	if !p(map[string]any{"event": map[string]any{"type": "login"}}) {
		t.Error("expected membership match")
	}
	if !p(map[string]any{"event": map[string]any{"type": float64(3)}}) {
		t.Error("expected numeric membership match")
	}
	if p(map[string]any{"event": map[string]any{"type": "file_access"}}) {
		t.Error("expected no membership match")
	}
	if p(map[string]any{}) {
		t.Error("absent field should never satisfy in")
	}
}

func TestContains(t *testing.T) {
	p := mustCompile(t, `contains(process.cmdline, "powershell")`)

	if !p(map[string]any{"process": map[string]any{"cmdline": "C:\\Windows\\powershell.exe -enc ..."}}) {
		t.Error("expected substring match")
	}
	if p(map[string]any{"process": map[string]any{"cmdline": "bash"}}) {
		t.Error("expected no substring match")
	}
	if p(map[string]any{}) {
		t.Error("absent field should not match contains")
	}
}

func TestRegex(t *testing.T) {
	p := mustCompile(t, `regex(user.name, "^adm.*")`)

	if !p(map[string]any{"user": map[string]any{"name": "admin"}}) {
		t.Error("expected regex match")
	}
	if p(map[string]any{"user": map[string]any{"name": "guest"}}) {
		t.Error("expected no regex match")
	}
	if p(map[string]any{}) {
		t.Error("absent field should not match regex")
	}
}

func TestInvalidRegexIsCompileTimeError(t *testing.T) {
	_, err := Compile(`regex(user.name, "(unterminated")`)
	if err == nil {
		t.Fatal("expected compile-time error for invalid regex pattern")
	}
}

func TestEmptyExpressionIsCompileError(t *testing.T) {
	if _, err := Compile("   "); err == nil {
		t.Fatal("expected compile error for whitespace-only expression")
	}
}

func TestUnsupportedSyntaxIsCompileError(t *testing.T) {
	if _, err := Compile("field <> value"); err == nil {
		t.Fatal("expected compile error for unsupported syntax")
	}
}

func TestDisambiguationPriority(t *testing.T) {
	// " in [" sniff must not fire on an == comparison whose literal starts with "in".
	p := mustCompile(t, `status == "in_progress"`)
	if !p(map[string]any{"status": "in_progress"}) {
		t.Error("== must win when there is no ' in [' token present")
	}

	// contains(/regex( are recognized by prefix only: an == comparison whose
	// string literal merely mentions them must still parse as ==.
	p = mustCompile(t, `msg == "contains(x)"`)
	if !p(map[string]any{"msg": "contains(x)"}) {
		t.Error("== must win when contains( appears only inside the literal")
	}
}

// panicStringer panics when rendered as text, standing in for a field value
// whose evaluation fails at runtime.
type panicStringer struct{}

func (panicStringer) String() string { panic("String called") }

func TestRuntimePanicMapsToFalse(t *testing.T) {
	p := mustCompile(t, `contains(a, "x")`)
	// ToText calls String() on a fmt.Stringer field value; the panic it raises
	// here must be trapped by Compile's recover wrapper.
	if p(map[string]any{"a": panicStringer{}}) {
		t.Error("a predicate whose evaluation panics must evaluate to false")
	}
	// A nil record is walked like an empty map, so the field is simply absent.
	if p(nil) {
		t.Error("predicate over a nil record must evaluate to false, never panic")
	}
}
