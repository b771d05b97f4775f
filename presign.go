package awsclient

import (
	"fmt"
	"net/http"
	"time"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
)

// PresignedURL returns a URL that grants time-limited access to this request
// without further credentials. The signature is carried in query parameters,
// so the URL can be handed to a plain HTTP client, a browser, or a third
// party. The payload is left unsigned, which matches how AWS services treat
// presigned uploads and downloads.
//
// The expiry must be between one second and seven days. Headers and body set
// on the request builder do not participate in the signature; only the
// method, URL, and query string do.
func (r *Request) PresignedURL(expires time.Duration) (string, error) {
	u, err := r.buildTarget()
	if err != nil {
		return "", awserrors.NewError("presign", awserrors.KindConfiguration, err)
	}

	httpReq, err := http.NewRequest(r.method, u.String(), nil)
	if err != nil {
		return "", awserrors.NewError("presign", awserrors.KindConfiguration,
			fmt.Errorf("build request: %w", err))
	}

	signed, err := r.client.signer.Presign(httpReq, r.client.signerConfig(), r.client.now(), expires)
	if err != nil {
		return "", awserrors.NewError("presign", awserrors.KindConfiguration, err)
	}
	return signed, nil
}
