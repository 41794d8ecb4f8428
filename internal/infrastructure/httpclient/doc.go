// Package httpclient turns HTTP calls into wrapped operations.
//
// Client.Do has the execution.Operation signature, so an HTTP endpoint can be
// placed behind any adaptive executor:
//
//	c := httpclient.New(httpclient.DefaultConfig("https://inventory.internal"))
//	exec, err := retry.New[httpclient.Request, httpclient.Response](c.Do, retry.DefaultConfig("inventory"))
//
// Status codes are classified for the retry executor: 408, 425, 429 and 5xx
// are transient, every other 4xx is permanent.
package httpclient
