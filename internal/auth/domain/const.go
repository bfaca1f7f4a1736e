// Package domain defines token and audit log domain models.
// Tokens carry policy names and an optional entity binding; audit logs record
// every authenticated dispatch through the control-plane router.
package domain

// TokenLength is the number of random bytes in a plain token before encoding.
const TokenLength = 32

// SignatureLength is the size of an HMAC-SHA256 audit log signature.
const SignatureLength = 32
