// Package internal contains private implementation details for the client
// module. These packages are not intended for external use and may change
// without notice.
//
// The internal packages are organized as follows:
//   - signer: AWS Signature Version 4 request signing and presigning
package internal
