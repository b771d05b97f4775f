// Package awsclient provides a lightweight Go client for authenticated
// calls to AWS-style REST APIs. It signs plain HTTP requests with AWS
// Signature Version 4 directly, so services can be called without pulling
// in a generated SDK for each one.
//
// The module favors explicit, inspectable behavior: requests are built with
// a fluent builder, signed per attempt, retried under a configurable
// backoff policy, and returned as immutable responses whose XML bodies can
// be navigated without schema types.
//
// Key features:
//   - AWS Signature V4 signing for any region, service, and endpoint
//   - Presigned URLs for time-limited unauthenticated access
//   - Bounded exponential backoff with configurable retryable statuses
//   - Minimal XML tree navigation for response documents
//   - Progressive enhancement through functional options
//
// Example usage:
//
//	client, err := awsclient.New("sqs", awsclient.WithRegion("us-west-1"))
//	if err != nil {
//	    return err
//	}
//
//	// List queues and read the XML response
//	root, err := client.NewRequest(http.MethodGet, "/").
//	    Query("Action", "ListQueues").
//	    XML(ctx)
//	if err != nil {
//	    return err
//	}
package awsclient
