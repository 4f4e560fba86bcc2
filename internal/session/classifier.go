package session

import (
	"strings"

	"github.com/jcmturner/gokrb5/v8/types"
)

// KRBNTPrincipal is the Kerberos principal name-type value (RFC 4120
// §6.2's KRB_NT_PRINCIPAL) used when constructing a types.PrincipalName
// from a decoded display string.
const KRBNTPrincipal int32 = 1

// classify implements spec §4.3: derive is_host/is_admin from the
// authenticated principal's realm and components.
//
// The principal here is already a decoded display string (it came
// out of the GSS exported-name token, not an ASN.1-encoded
// PrincipalName), so splitting it is a plain string operation;
// gokrb5's own parsing entry points operate on already-decoded
// ticket fields, not display strings, so there is no library call to
// reach for here (see DESIGN.md) — the decomposed result is still
// carried forward in a types.PrincipalName so the rest of the code
// uses one representation regardless of which KDC family issued the
// ticket, per spec §9 DESIGN NOTES.
func classify(principalText, defaultRealm string) (isHost, isAdmin bool, hostname string, realm string, components []string) {
	name, realm := splitPrincipal(principalText)
	components = strings.Split(name, "/")

	if !realmsEqual(realm, defaultRealm) {
		return false, false, "", realm, components
	}

	if len(components) == 2 {
		switch {
		case components[0] == "host":
			return true, false, components[1], realm, components
		case components[1] == "admin":
			return false, true, "", realm, components
		}
	}

	return false, false, "", realm, components
}

// splitPrincipal separates "name/instance@REALM" into its name
// portion and realm. A principal with no "@" has an empty realm,
// which always fails realmsEqual against a non-empty default realm.
func splitPrincipal(principalText string) (name, realm string) {
	at := strings.LastIndex(principalText, "@")
	if at < 0 {
		return principalText, ""
	}
	return principalText[:at], principalText[at+1:]
}

// realmsEqual is a byte-wise, equal-length comparison (spec §4.3 step
// 1: "not a substring search — the comparator must require equal
// length").
func realmsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return a == b
}

// toPrincipalName builds the gokrb5 representation of a classified
// principal for callers (handlers, logging) that want a single,
// KDC-family-independent accessor surface.
func toPrincipalName(components []string) types.PrincipalName {
	return types.PrincipalName{
		NameType:   KRBNTPrincipal,
		NameString: components,
	}
}

// PrincipalName returns the gokrb5 representation of the session's
// classified principal components.
func (s *Session) PrincipalName() types.PrincipalName {
	return toPrincipalName(s.Components)
}

// Classify runs the authorization classifier against s's
// authenticated principal and records the result on the session
// (spec §4.3): run once, immediately after AUTH succeeds.
func (s *Session) Classify() {
	isHost, isAdmin, hostname, realm, components := classify(s.PrincipalText, s.cfg.DefaultRealm)
	s.IsHost = isHost
	s.IsAdmin = isAdmin
	s.Hostname = hostname
	s.Realm = realm
	s.Components = components
	s.bindPrincipalFields()
}
