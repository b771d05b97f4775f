package awsclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
)

// singleAttemptPolicy never retries and never sleeps.
func singleAttemptPolicy() RetryPolicy {
	return noSleepPolicy(RetryPolicy{MaxAttempts: 1})
}

// advancingClock returns a clock that moves forward one second per call.
func advancingClock(base time.Time) func() time.Time {
	calls := 0
	return func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * time.Second)
	}
}

func TestDoReturnsResponseOnAnyStatus(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusNotFound, "missing"), nil
		},
	}
	client := newTestClient(t, transport)

	resp, err := client.NewRequest(http.MethodGet, "/absent").Do(context.Background())

	require.NoError(t, err, "a well-formed response is not an error on this path")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "missing", resp.Text())
	assert.Len(t, transport.requests, 1)
}

func TestDoSignsEveryAttempt(t *testing.T) {
	transport := &mockTransport{}
	transport.doFunc = func(*http.Request) (*http.Response, error) {
		if len(transport.requests) < 3 {
			return httpResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpResponse(http.StatusOK, ""), nil
	}
	base := time.Date(2013, 5, 24, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, transport,
		WithRetryPolicy(noSleepPolicy(DefaultRetryPolicy())),
		WithClock(advancingClock(base)),
	)

	req := client.NewRequest(http.MethodGet, "/test.txt")
	resp, err := req.Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	require.Len(t, transport.requests, 3)

	dates := make([]string, 0, 3)
	signatures := make([]string, 0, 3)
	for _, sent := range transport.requests {
		auth := sent.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth,
			"AWS4-HMAC-SHA256 Credential="+testAccessKeyID+"/"), "Authorization: %s", auth)
		dates = append(dates, sent.Header.Get("X-Amz-Date"))
		signatures = append(signatures, auth[strings.LastIndex(auth, "Signature=")+len("Signature="):])
	}
	assert.Equal(t, []string{"20130524T000000Z", "20130524T000001Z", "20130524T000002Z"}, dates)
	assert.NotEqual(t, signatures[0], signatures[1], "each attempt is signed with its own timestamp")
	assert.NotEqual(t, signatures[1], signatures[2])

	// The builder itself stays unsigned so it can be executed again.
	assert.Empty(t, req.header.Get("Authorization"))
	assert.Empty(t, req.header.Get("X-Amz-Date"))
}

func TestDoSendsFreshBodyPerAttempt(t *testing.T) {
	transport := &mockTransport{}
	transport.doFunc = func(*http.Request) (*http.Response, error) {
		if len(transport.requests) < 3 {
			return httpResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpResponse(http.StatusOK, ""), nil
	}
	client := newTestClient(t, transport, WithRetryPolicy(noSleepPolicy(DefaultRetryPolicy())))

	_, err := client.NewRequest(http.MethodPut, "/key").BodyString("hello").Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "hello", "hello"}, transport.bodies)
}

func TestDoReturnsLastResponseOnStatusExhaustion(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusServiceUnavailable, "still down"), nil
		},
	}
	policy := noSleepPolicy(DefaultRetryPolicy())
	policy.MaxAttempts = 3
	client := newTestClient(t, transport, WithRetryPolicy(policy))

	resp, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode())
	assert.Equal(t, "still down", resp.Text())
	assert.Len(t, transport.requests, 3)
}

func TestDoWrapsTransportErrorAfterExhaustion(t *testing.T) {
	dialErr := errors.New("connection refused")
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return nil, dialErr
		},
	}
	policy := noSleepPolicy(DefaultRetryPolicy())
	policy.MaxAttempts = 2
	client := newTestClient(t, transport, WithRetryPolicy(policy))

	resp, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())

	assert.Nil(t, resp)
	assert.True(t, awserrors.IsTransport(err))
	var maxErr *awserrors.MaxAttemptsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.Attempts)
	assert.ErrorIs(t, err, dialErr)
	assert.Len(t, transport.requests, 2)
}

func TestDoNonRetryableTransportError(t *testing.T) {
	certErr := errors.New("x509: certificate signed by unknown authority")
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return nil, certErr
		},
	}
	policy := noSleepPolicy(DefaultRetryPolicy())
	policy.RetryError = func(error) bool { return false }
	client := newTestClient(t, transport, WithRetryPolicy(policy))

	resp, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())

	assert.Nil(t, resp)
	assert.True(t, awserrors.IsTransport(err))
	assert.ErrorIs(t, err, certErr)
	assert.Len(t, transport.requests, 1, "a non-retryable error stops after one attempt")
}

func TestDoConfigurationErrorBeforeAnyAttempt(t *testing.T) {
	transport := &mockTransport{}
	client := newTestClient(t, transport, WithRetryPolicy(noSleepPolicy(DefaultRetryPolicy())))

	resp, err := client.NewRequestURL(http.MethodGet, "not-a-url").Do(context.Background())

	assert.Nil(t, resp)
	assert.True(t, awserrors.IsConfiguration(err))
	assert.Empty(t, transport.requests, "nothing reaches the wire on a bad target")
}

func TestDoAbortsWhenContextCanceled(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusServiceUnavailable, ""), nil
		},
	}
	client := newTestClient(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := client.NewRequest(http.MethodGet, "/").Do(ctx)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, transport.requests, 1, "the backoff sleep observes the canceled context")
}

func TestDoTelemetryHeaders(t *testing.T) {
	transport := &mockTransport{}
	transport.doFunc = func(*http.Request) (*http.Response, error) {
		if len(transport.requests) < 2 {
			return httpResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpResponse(http.StatusOK, ""), nil
	}
	client := newTestClient(t, transport, WithRetryPolicy(noSleepPolicy(DefaultRetryPolicy())))

	_, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())
	require.NoError(t, err)
	require.Len(t, transport.requests, 2)

	first := transport.requests[0].Header.Get("Amz-Sdk-Invocation-Id")
	second := transport.requests[1].Header.Get("Amz-Sdk-Invocation-Id")
	_, parseErr := uuid.Parse(first)
	assert.NoError(t, parseErr)
	assert.Equal(t, first, second, "one invocation id spans all attempts of a call")

	assert.Equal(t, "attempt=1; max=10", transport.requests[0].Header.Get("Amz-Sdk-Request"))
	assert.Equal(t, "attempt=2; max=10", transport.requests[1].Header.Get("Amz-Sdk-Request"))

	assert.Equal(t, userAgent, transport.requests[0].Header.Get("User-Agent"))
}

func TestDoKeepsCallerUserAgent(t *testing.T) {
	transport := &mockTransport{}
	client := newTestClient(t, transport)

	_, err := client.NewRequest(http.MethodGet, "/").
		Header("User-Agent", "my-app/1.0").
		Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "my-app/1.0", transport.requests[0].Header.Get("User-Agent"))
}

func TestAttemptHeader(t *testing.T) {
	tests := []struct {
		attempt     int
		maxAttempts int
		want        string
	}{
		{1, 10, "attempt=1; max=10"},
		{3, 3, "attempt=3; max=3"},
		{5, 0, "attempt=5"},
		{2, -1, "attempt=2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attemptHeader(tt.attempt, tt.maxAttempts))
	}
}

func TestExecuteReturnsResponseOnSuccess(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusOK, "payload"), nil
		},
	}
	client := newTestClient(t, transport)

	resp, err := client.NewRequest(http.MethodGet, "/key").Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Text())
}

func TestExecuteGenericServiceError(t *testing.T) {
	body := `<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusForbidden, body), nil
		},
	}
	client := newTestClient(t, transport, WithRetryPolicy(singleAttemptPolicy()))

	resp, err := client.NewRequest(http.MethodGet, "/secret").Execute(context.Background())

	assert.Nil(t, resp)
	assert.True(t, awserrors.IsService(err))

	svcErr, ok := awserrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, svcErr.StatusCode)
	assert.Equal(t, "AccessDenied", svcErr.Code())
	assert.Equal(t, "Access Denied", svcErr.Message())
}

func TestExecuteRulesFirstMatchWins(t *testing.T) {
	firstErr := errors.New("bucket is missing")
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusNotFound, ""), nil
		},
	}
	client := newTestClient(t, transport,
		WithErrorRule(
			func(r *Response) bool { return r.StatusCode() == http.StatusNotFound },
			func(*Response) error { return firstErr },
		),
		WithErrorRule(
			func(r *Response) bool { return r.StatusCode() == http.StatusNotFound },
			func(*Response) error { return errors.New("never reached") },
		),
	)

	resp, err := client.NewRequest(http.MethodGet, "/absent").Execute(context.Background())

	assert.Nil(t, resp)
	assert.Equal(t, firstErr, err, "rule errors are returned verbatim")
}

func TestExecuteRuleAcceptsResponse(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusNotFound, ""), nil
		},
	}
	client := newTestClient(t, transport,
		WithErrorRule(
			func(r *Response) bool { return r.StatusCode() == http.StatusNotFound },
			func(*Response) error { return nil },
		),
	)

	resp, err := client.NewRequest(http.MethodGet, "/maybe").Execute(context.Background())

	require.NoError(t, err, "a nil-producing rule accepts the response")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestExecuteRuleSkipsNonMatching(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusNotFound, "<Error><Code>NoSuchKey</Code></Error>"), nil
		},
	}
	client := newTestClient(t, transport,
		WithErrorRule(
			func(r *Response) bool { return r.StatusCode() == http.StatusInternalServerError },
			func(*Response) error { return errors.New("server exploded") },
		),
	)

	_, err := client.NewRequest(http.MethodGet, "/absent").Execute(context.Background())

	assert.True(t, awserrors.IsService(err), "non-matching rules fall through to the generic error")
	svcErr, ok := awserrors.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, "NoSuchKey", svcErr.Code())
}

func TestXMLExecutesAndParses(t *testing.T) {
	t.Run("success document", func(t *testing.T) {
		body := `<GetQueueUrlResponse>
			<GetQueueUrlResult>
				<QueueUrl>https://sqs.us-east-1.amazonaws.com/123456789012/my-queue</QueueUrl>
			</GetQueueUrlResult>
		</GetQueueUrlResponse>`
		transport := &mockTransport{
			doFunc: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusOK, body), nil
			},
		}
		client := newTestClient(t, transport)

		root, err := client.NewRequest(http.MethodGet, "/").
			Query("Action", "GetQueueUrl").
			Query("QueueName", "my-queue").
			XML(context.Background())

		require.NoError(t, err)
		queueURL, err := root.Text("GetQueueUrlResult", "QueueUrl")
		require.NoError(t, err)
		assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123456789012/my-queue", queueURL)
	})

	t.Run("error document parses on a failure status", func(t *testing.T) {
		transport := &mockTransport{
			doFunc: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusNotFound, "<Error><Code>NoSuchKey</Code></Error>"), nil
			},
		}
		client := newTestClient(t, transport)

		root, err := client.NewRequest(http.MethodGet, "/absent").XML(context.Background())

		require.NoError(t, err)
		code, err := root.Text("Code")
		require.NoError(t, err)
		assert.Equal(t, "NoSuchKey", code)
	})

	t.Run("malformed body", func(t *testing.T) {
		transport := &mockTransport{
			doFunc: func(*http.Request) (*http.Response, error) {
				return httpResponse(http.StatusOK, "{\"not\": \"xml\"}"), nil
			},
		}
		client := newTestClient(t, transport)

		root, err := client.NewRequest(http.MethodGet, "/").XML(context.Background())

		assert.Nil(t, root)
		assert.True(t, awserrors.IsParse(err))
	})
}

func TestBytesAndTextIgnoreStatus(t *testing.T) {
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			return httpResponse(http.StatusNotFound, "raw body"), nil
		},
	}
	client := newTestClient(t, transport)

	b, err := client.NewRequest(http.MethodGet, "/absent").Bytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("raw body"), b)

	s, err := client.NewRequest(http.MethodGet, "/absent").Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "raw body", s)
}

func TestDoMergedQueryReachesWire(t *testing.T) {
	transport := &mockTransport{}
	client := newTestClient(t, transport)

	_, err := client.NewRequest(http.MethodGet, "/").
		Query("prefix", "J").
		Query("max-keys", "2").
		Do(context.Background())

	require.NoError(t, err)
	sent := transport.requests[0]
	assert.Equal(t, "J", sent.URL.Query().Get("prefix"))
	assert.Equal(t, "2", sent.URL.Query().Get("max-keys"))
	assert.Equal(t, "max-keys=2&prefix=J", sent.URL.RawQuery,
		"the wire query is the canonical form that was signed")
}

func TestDoExecutesSameRequestTwice(t *testing.T) {
	transport := &mockTransport{}
	base := time.Date(2013, 5, 24, 0, 0, 0, 0, time.UTC)
	client := newTestClient(t, transport, WithClock(advancingClock(base)))

	req := client.NewRequest(http.MethodPut, "/key").BodyString("v1")

	_, err := req.Do(context.Background())
	require.NoError(t, err)
	_, err = req.Do(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.requests, 2)
	assert.Equal(t, []string{"v1", "v1"}, transport.bodies)

	firstAuth := transport.requests[0].Header.Get("Authorization")
	secondAuth := transport.requests[1].Header.Get("Authorization")
	assert.NotEqual(t, firstAuth, secondAuth, "re-execution re-derives the timestamp and signature")

	firstID := transport.requests[0].Header.Get("Amz-Sdk-Invocation-Id")
	secondID := transport.requests[1].Header.Get("Amz-Sdk-Invocation-Id")
	assert.NotEqual(t, firstID, secondID, "each execution is its own invocation")
}

func TestSendReadsAndClosesBody(t *testing.T) {
	closed := false
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			resp := httpResponse(http.StatusOK, "body")
			resp.Body = &closeTracker{Reader: strings.NewReader("body"), closed: &closed}
			return resp, nil
		},
	}
	client := newTestClient(t, transport)

	resp, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "body", resp.Text())
	assert.True(t, closed, "the wire body is closed after reading")
}

// closeTracker flags when the response body is closed.
type closeTracker struct {
	*strings.Reader
	closed *bool
}

func (c *closeTracker) Close() error {
	*c.closed = true
	return nil
}

func TestSendPropagatesReadFailure(t *testing.T) {
	readErr := errors.New("unexpected EOF")
	transport := &mockTransport{
		doFunc: func(*http.Request) (*http.Response, error) {
			resp := httpResponse(http.StatusOK, "")
			resp.Body = &failingBody{err: readErr}
			return resp, nil
		},
	}
	policy := noSleepPolicy(DefaultRetryPolicy())
	policy.MaxAttempts = 2
	client := newTestClient(t, transport, WithRetryPolicy(policy))

	resp, err := client.NewRequest(http.MethodGet, "/").Do(context.Background())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, readErr)
	assert.Len(t, transport.requests, 2, "a failed body read is retried like any transport error")
}

// failingBody fails every read.
type failingBody struct {
	err error
}

func (f *failingBody) Read([]byte) (int, error) { return 0, f.err }
func (f *failingBody) Close() error             { return nil }
