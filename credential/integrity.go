package credential

import "github.com/sage-x-project/authcore/primitives"

const macSubkeyInfo = "CTX-MAC"

// macSubkey derives the HMAC key used for the credential-ID integrity
// hook from the master secret, per spec.md §9. The subkey is a distinct
// HKDF expansion from the one used for key derivation (deriveInfoLabel),
// so a MAC tag can never be mistaken for a private scalar or vice versa.
func macSubkey(m []byte) ([]byte, error) {
	sub := primitives.HKDFExtract(nil, m)
	defer primitives.Zero(sub)
	return primitives.HKDFExpand(sub, []byte(macSubkeyInfo), 32)
}

// MACContext computes an integrity tag over ctx keyed by a subkey derived
// from the master secret. Binding anything beyond ctx itself (such as an
// RP ID) is an open policy question per spec.md §9 and is deliberately
// left to the caller, not decided here.
func MACContext(m, ctx []byte) ([]byte, error) {
	if len(m) != MasterSecretSize {
		return nil, ErrInvalidMasterSecret
	}
	if len(ctx) != ContextSize {
		return nil, ErrInvalidContext
	}
	key, err := macSubkey(m)
	if err != nil {
		return nil, err
	}
	defer primitives.Zero(key)
	return primitives.HMACSHA256(key, ctx), nil
}

// VerifyContext reports whether mac is a valid MACContext tag for ctx.
// Comparison is constant-time (primitives.CTEqual); callers must not
// branch on anything but this return value.
func VerifyContext(m, ctx, mac []byte) (bool, error) {
	want, err := MACContext(m, ctx)
	if err != nil {
		return false, err
	}
	return primitives.CTEqual(want, mac), nil
}

// Deriver wraps DeriveCredential with the optional context-integrity
// pre-check. RequireContextIntegrity defaults to false: spec.md §9 asks
// for the hook, not a decision to enforce it, so callers opt in
// explicitly once an upstream policy exists.
type Deriver struct {
	RequireContextIntegrity bool
}

// Derive derives a credential keypair for ctx, optionally verifying ctxMAC
// first when d.RequireContextIntegrity is set. ctxMAC is ignored when the
// check is disabled.
func (d Deriver) Derive(m, ctx, ctxMAC []byte) (*primitives.KeyPair, error) {
	if d.RequireContextIntegrity {
		ok, err := VerifyContext(m, ctx, ctxMAC)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrContextInvalid
		}
	}
	return DeriveCredential(m, ctx)
}
