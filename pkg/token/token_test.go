package token

import (
	"errors"
	"testing"

	pkgerrors "Outreachly/pkg/errors"
)

func TestGenerateAndValidateTokenPair(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	access, refresh, expiresIn, err := GenerateTokenPair("usr_42", 7)
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("token pair must not be empty")
	}
	if expiresIn <= 0 {
		t.Errorf("expiresIn = %d, want > 0", expiresIn)
	}

	uid, err := ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("ValidateRefreshToken returned error: %v", err)
	}
	if uid != "usr_42" {
		t.Errorf("uid = %q, want usr_42", uid)
	}

	// access token 不带 refresh 类型声明，必须被拒绝
	if _, err := ValidateRefreshToken(access); !errors.Is(err, pkgerrors.ErrInvalidTokenType) {
		t.Errorf("access token validated as refresh, err = %v", err)
	}
}

func TestValidateRefreshTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateRefreshToken("not-a-token"); err == nil {
		t.Error("garbage token must not validate")
	}
}

func TestGenerateTokenPairRequiresInit(t *testing.T) {
	saved := sharedGenerator
	sharedGenerator = nil
	defer func() { sharedGenerator = saved }()

	_, _, _, err := GenerateTokenPair("usr_42", 7)
	if !errors.Is(err, pkgerrors.ErrTokenGeneratorNotInitialized) {
		t.Errorf("err = %v, want ErrTokenGeneratorNotInitialized", err)
	}
}
