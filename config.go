package mumble

import "crypto/tls"

// Config is the embedder-facing bag of connection options.
type Config struct {
	Username, Password string
	Tokens             []string

	// Cert and Key are optional PEM blobs for client-certificate
	// authentication.
	Cert, Key []byte

	// TLSConfig, if set, is used verbatim instead of one built from
	// Cert/Key; an escape hatch for embedders needing a custom RootCAs
	// or InsecureSkipVerify during development.
	TLSConfig *tls.Config

	OpusBitrate     int // default 40000
	AudioSampleRate int // default 48000, only value supported
	AudioChannels   int // default 1

	// VoiceTargetAccumulate controls what VoicetargetSet does with an
	// already-configured target_id. The zero value replaces the entry,
	// the natural "set" semantics. Set true to accumulate entries for
	// the same target_id without bound across calls, matching the wire
	// traffic of clients that never clear the table.
	VoiceTargetAccumulate bool

	VersionRelease, VersionOS, VersionOSVersion string
}

func (c Config) withDefaults() Config {
	if c.OpusBitrate == 0 {
		c.OpusBitrate = 40000
	}
	if c.AudioSampleRate == 0 {
		c.AudioSampleRate = 48000
	}
	if c.AudioChannels == 0 {
		c.AudioChannels = 1
	}
	if c.VersionRelease == "" {
		c.VersionRelease = "gomumble"
	}
	if c.VersionOS == "" {
		c.VersionOS = "go"
	}
	return c
}

func (c Config) tlsConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{}
	if len(c.Cert) > 0 && len(c.Key) > 0 {
		cert, err := tls.X509KeyPair(c.Cert, c.Key)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
