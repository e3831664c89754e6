package wire

// Field numbers below follow the public Mumble control-protocol
// schema so that this engine's byte-level framing interoperates with
// any compliant server.

// Version is sent by both sides right after the TLS handshake.
type Version struct {
	Version   uint32
	Release   string
	OS        string
	OSVersion string
}

func (v Version) Marshal() []byte {
	var w fieldWriter
	w.putUint32(1, v.Version)
	w.putString(2, v.Release)
	w.putString(3, v.OS)
	w.putString(4, v.OSVersion)
	return w.bytes()
}

func UnmarshalVersion(b []byte) (Version, error) {
	var v Version
	r := newFieldReader(b)
	for {
		field, wt, raw, num, ok, err := r.next()
		if err != nil {
			return v, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			if wt == wireVarint {
				v.Version = uint32(num)
			}
		case 2:
			v.Release = string(raw)
		case 3:
			v.OS = string(raw)
		case 4:
			v.OSVersion = string(raw)
		}
	}
	return v, nil
}

// Authenticate is sent by the client to log in.
type Authenticate struct {
	Username     string
	Password     string
	Tokens       []string
	CeltVersions []int32
	Opus         bool
}

func (a Authenticate) Marshal() []byte {
	var w fieldWriter
	w.putString(1, a.Username)
	w.putString(2, a.Password)
	for _, t := range a.Tokens {
		w.putString(3, t)
	}
	for _, c := range a.CeltVersions {
		w.putInt32(4, c)
	}
	w.putBool(5, a.Opus)
	return w.bytes()
}

// Ping is the keepalive message.
type Ping struct {
	Timestamp uint64
}

func (p Ping) Marshal() []byte {
	var w fieldWriter
	w.putUint64(1, p.Timestamp)
	return w.bytes()
}

func UnmarshalPing(b []byte) (Ping, error) {
	var p Ping
	r := newFieldReader(b)
	for {
		field, _, _, num, ok, err := r.next()
		if err != nil {
			return p, err
		}
		if !ok {
			break
		}
		if field == 1 {
			p.Timestamp = num
		}
	}
	return p, nil
}

// Reject is sent by the server to refuse a connection.
type Reject struct {
	Type   int32
	Reason string
}

func UnmarshalReject(b []byte) (Reject, error) {
	rj := Reject{Type: -1}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return rj, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			rj.Type = int32(num)
		case 2:
			rj.Reason = string(raw)
		}
	}
	return rj, nil
}

// ServerSync marks handshake completion.
type ServerSync struct {
	Session      uint32
	MaxBandwidth int32
	WelcomeText  string
	Permissions  int64
}

func UnmarshalServerSync(b []byte) (ServerSync, error) {
	s := ServerSync{MaxBandwidth: -1}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return s, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			s.Session = uint32(num)
		case 2:
			s.MaxBandwidth = int32(num)
		case 3:
			s.WelcomeText = string(raw)
		case 4:
			s.Permissions = int64(num)
		}
	}
	return s, nil
}

// ChannelRemove erases a channel by id.
type ChannelRemove struct {
	ChannelID uint32
}

func UnmarshalChannelRemove(b []byte) (ChannelRemove, error) {
	var c ChannelRemove
	r := newFieldReader(b)
	for {
		field, _, _, num, ok, err := r.next()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		if field == 1 {
			c.ChannelID = uint32(num)
		}
	}
	return c, nil
}

// ChannelState inserts or updates channel metadata.
type ChannelState struct {
	ChannelID       int32
	Parent          int32
	Name            string
	Links           []uint32
	LinksAdd        []uint32
	LinksRemove     []uint32
	Description     string
	Temporary       bool
	Position        int32
	HasName         bool
	HasDescription  bool
}

func UnmarshalChannelState(b []byte) (ChannelState, error) {
	c := ChannelState{ChannelID: -1, Parent: -1, Position: -1}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			c.ChannelID = int32(num)
		case 2:
			c.Parent = int32(num)
		case 3:
			c.Name = string(raw)
			c.HasName = true
		case 4:
			c.Links = append(c.Links, uint32(num))
		case 5:
			c.Description = string(raw)
			c.HasDescription = true
		case 6:
			c.LinksAdd = append(c.LinksAdd, uint32(num))
		case 7:
			c.LinksRemove = append(c.LinksRemove, uint32(num))
		case 8:
			c.Temporary = num != 0
		case 9:
			c.Position = int32(num)
		}
	}
	return c, nil
}

// UserRemove erases a user session.
type UserRemove struct {
	Session uint32
	Actor   int32
	Reason  string
	Ban     bool
}

func UnmarshalUserRemove(b []byte) (UserRemove, error) {
	u := UserRemove{Actor: -1}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return u, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			u.Session = uint32(num)
		case 2:
			u.Actor = int32(num)
		case 3:
			u.Reason = string(raw)
		case 4:
			u.Ban = num != 0
		}
	}
	return u, nil
}

// UserState carries a sparse set of per-user fields; absent optional
// scalars are normalized to -1 (signed) at decode time. It doubles as
// the outbound message UserSendState builds.
type UserState struct {
	Session         int32
	Actor           int32
	Name            string
	HasName         bool
	UserID          int32
	ChannelID       int32
	HasChannelID    bool
	Mute            int32
	Deaf            int32
	Suppress        int32
	SelfMute        int32
	SelfDeaf        int32
	Comment         string
	HasComment      bool
	CommentHash     []byte
	PrioritySpeaker int32
	Recording       int32
}

func UnmarshalUserState(b []byte) (UserState, error) {
	u := UserState{
		Session: -1, Actor: -1, UserID: -1, ChannelID: -1,
		Mute: -1, Deaf: -1, Suppress: -1, SelfMute: -1, SelfDeaf: -1,
		PrioritySpeaker: -1, Recording: -1,
	}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return u, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			u.Session = int32(num)
		case 2:
			u.Actor = int32(num)
		case 3:
			u.Name = string(raw)
			u.HasName = true
		case 4:
			u.UserID = int32(num)
		case 5:
			u.ChannelID = int32(num)
			u.HasChannelID = true
		case 6:
			u.Mute = int32(num)
		case 7:
			u.Deaf = int32(num)
		case 8:
			u.Suppress = int32(num)
		case 9:
			u.SelfMute = int32(num)
		case 10:
			u.SelfDeaf = int32(num)
		case 14:
			u.Comment = string(raw)
			u.HasComment = true
		case 16:
			u.CommentHash = append([]byte(nil), raw...)
		case 18:
			u.PrioritySpeaker = int32(num)
		case 19:
			u.Recording = int32(num)
		}
	}
	return u, nil
}

func (u UserState) Marshal() []byte {
	var w fieldWriter
	if u.Session >= 0 {
		w.putUint32(1, uint32(u.Session))
	}
	if u.Actor >= 0 {
		w.putUint32(2, uint32(u.Actor))
	}
	if u.HasName {
		w.putString(3, u.Name)
	}
	if u.UserID >= 0 {
		w.putUint32(4, uint32(u.UserID))
	}
	if u.HasChannelID {
		w.putUint32(5, uint32(u.ChannelID))
	}
	if u.Mute >= 0 {
		w.putBool(6, u.Mute != 0)
	}
	if u.Deaf >= 0 {
		w.putBool(7, u.Deaf != 0)
	}
	if u.Suppress >= 0 {
		w.putBool(8, u.Suppress != 0)
	}
	if u.SelfMute >= 0 {
		w.putBool(9, u.SelfMute != 0)
	}
	if u.SelfDeaf >= 0 {
		w.putBool(10, u.SelfDeaf != 0)
	}
	if u.HasComment {
		w.putString(14, u.Comment)
	}
	if len(u.CommentHash) > 0 {
		w.putBytes(16, u.CommentHash)
	}
	if u.PrioritySpeaker >= 0 {
		w.putBool(18, u.PrioritySpeaker != 0)
	}
	if u.Recording >= 0 {
		w.putBool(19, u.Recording != 0)
	}
	return w.bytes()
}

// BanEntry is one record within a BanList message.
type BanEntry struct {
	Address  []byte
	Mask     uint32
	Name     string
	Hash     string
	Reason   string
	Start    string
	Duration int32
}

// BanList is forwarded to the embedder per entry.
type BanList struct {
	Entries []BanEntry
	Query   bool
}

func UnmarshalBanList(b []byte) (BanList, error) {
	var bl BanList
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return bl, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			entry, err := unmarshalBanEntry(raw)
			if err != nil {
				return bl, err
			}
			bl.Entries = append(bl.Entries, entry)
		case 2:
			bl.Query = num != 0
		}
	}
	return bl, nil
}

func unmarshalBanEntry(b []byte) (BanEntry, error) {
	e := BanEntry{Duration: -1}
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return e, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			e.Address = append([]byte(nil), raw...)
		case 2:
			e.Mask = uint32(num)
		case 3:
			e.Name = string(raw)
		case 4:
			e.Hash = string(raw)
		case 5:
			e.Reason = string(raw)
		case 6:
			e.Start = string(raw)
		case 7:
			e.Duration = int32(num)
		}
	}
	return e, nil
}

// TextMessage is forwarded to the embedder without state changes.
type TextMessage struct {
	Actor     uint32
	Session   []uint32
	ChannelID []uint32
	TreeID    []uint32
	Message   string
}

func (t TextMessage) Marshal() []byte {
	var w fieldWriter
	w.putUint32(1, t.Actor)
	for _, s := range t.Session {
		w.putUint32(2, s)
	}
	for _, c := range t.ChannelID {
		w.putUint32(3, c)
	}
	for _, tr := range t.TreeID {
		w.putUint32(4, tr)
	}
	w.putString(5, t.Message)
	return w.bytes()
}

func UnmarshalTextMessage(b []byte) (TextMessage, error) {
	var t TextMessage
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return t, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			t.Actor = uint32(num)
		case 2:
			t.Session = append(t.Session, uint32(num))
		case 3:
			t.ChannelID = append(t.ChannelID, uint32(num))
		case 4:
			t.TreeID = append(t.TreeID, uint32(num))
		case 5:
			t.Message = string(raw)
		}
	}
	return t, nil
}

// PermissionQuery is forwarded to the embedder without state changes.
type PermissionQuery struct {
	ChannelID   int32
	Permissions uint32
	Flush       bool
}

func UnmarshalPermissionQuery(b []byte) (PermissionQuery, error) {
	p := PermissionQuery{ChannelID: -1}
	r := newFieldReader(b)
	for {
		field, _, _, num, ok, err := r.next()
		if err != nil {
			return p, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			p.ChannelID = int32(num)
		case 2:
			p.Permissions = uint32(num)
		case 3:
			p.Flush = num != 0
		}
	}
	return p, nil
}

// CodecVersion is forwarded to the embedder without state changes.
type CodecVersion struct {
	Alpha       int32
	Beta        int32
	PreferAlpha bool
	Opus        int32
}

func UnmarshalCodecVersion(b []byte) (CodecVersion, error) {
	c := CodecVersion{Alpha: -1, Beta: -1, Opus: -1}
	r := newFieldReader(b)
	for {
		field, _, _, num, ok, err := r.next()
		if err != nil {
			return c, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			c.Alpha = int32(num)
		case 2:
			c.Beta = int32(num)
		case 3:
			c.PreferAlpha = num != 0
		case 4:
			c.Opus = int32(num)
		}
	}
	return c, nil
}

// ServerConfig overwrites the server configuration snapshot.
type ServerConfig struct {
	MaxBandwidth       uint32
	WelcomeText        string
	AllowHTML          uint32
	MessageLength      uint32
	ImageMessageLength uint32
}

func UnmarshalServerConfig(b []byte) (ServerConfig, error) {
	var s ServerConfig
	r := newFieldReader(b)
	for {
		field, _, raw, num, ok, err := r.next()
		if err != nil {
			return s, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			s.MaxBandwidth = uint32(num)
		case 2:
			s.WelcomeText = string(raw)
		case 3:
			if num != 0 {
				s.AllowHTML = 1
			}
		case 4:
			s.MessageLength = uint32(num)
		case 5:
			s.ImageMessageLength = uint32(num)
		}
	}
	return s, nil
}

// UserStats is forwarded to the embedder without state changes.
type UserStats struct {
	Session    uint32
	StatsOnly  bool
	OnlineSecs uint32
	IdleSecs   uint32
}

func (u UserStats) Marshal() []byte {
	var w fieldWriter
	w.putUint32(1, u.Session)
	w.putBool(2, u.StatsOnly)
	return w.bytes()
}

func UnmarshalUserStats(b []byte) (UserStats, error) {
	var u UserStats
	r := newFieldReader(b)
	for {
		field, _, _, num, ok, err := r.next()
		if err != nil {
			return u, err
		}
		if !ok {
			break
		}
		switch field {
		case 1:
			u.Session = uint32(num)
		case 2:
			u.StatsOnly = num != 0
		case 16:
			u.OnlineSecs = uint32(num)
		case 17:
			u.IdleSecs = uint32(num)
		}
	}
	return u, nil
}

// VoiceTargetEntry is one routing rule within a VoiceTarget table
// entry.
type VoiceTargetEntry struct {
	Session   []uint32
	ChannelID int32
	Links     bool
	Children  bool
	Name      string
}

// VoiceTarget is the outbound message built by VoicetargetSet. The
// engine never needs to decode an inbound one (it is in
// UnimplementedTags), only encode and send it.
type VoiceTarget struct {
	ID      int32
	Targets []VoiceTargetEntry
}

func (v VoiceTarget) Marshal() []byte {
	var w fieldWriter
	w.putInt32(1, v.ID)
	for _, t := range v.Targets {
		var tw fieldWriter
		for _, s := range t.Session {
			tw.putUint32(1, s)
		}
		if t.ChannelID >= 0 {
			tw.putInt32(2, t.ChannelID)
			tw.putBool(4, t.Links)
			tw.putBool(5, t.Children)
		}
		tw.putString(3, t.Name)
		w.putBytes(2, tw.bytes())
	}
	return w.bytes()
}
