package main

import "crypto/tls"

// insecureTLSConfig skips certificate verification, useful for
// pointing the CLI at a self-signed development server. Never the
// default for library embedders — mumble.Config.TLSConfig is nil
// (verified) unless set. The CLI's --insecure flag, which defaults to
// true, builds this; pass --insecure=false to verify certificates.
func insecureTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}
