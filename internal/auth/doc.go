// Package auth implements authentication against the vendor account
// service and authenticated portal requests.
//
// Login is a three step dance: the md5 password hash buys an account
// access token, the token buys a one-shot auth code, and the auth code is
// exchanged for the portal user token every later request rides on. All
// account requests carry an md5 signature over their sorted parameters.
//
// Credentials are cached until shortly before expiry. Renewals fan out
// to registered listeners, which the broker transport uses to rotate its
// connection password without tearing the session down.
//
// The account gateway occasionally answers 502 during deployments; those
// are retried a fixed number of times with a constant delay. Credential
// rejections are never retried.
package auth
