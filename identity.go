package credentials

// directoryIdentity adapts a directory record to the Identity interface
type directoryIdentity struct {
	user *DirectoryUser
}

var _ Identity = (*directoryIdentity)(nil)

// IdentityFromDirectory wraps a directory record as an Identity so it
// can be handed to the signer
func IdentityFromDirectory(user *DirectoryUser) Identity {
	return &directoryIdentity{user: user}
}

func (d *directoryIdentity) ID() string {
	if d.user == nil {
		return ""
	}
	return d.user.UID
}

func (d *directoryIdentity) Username() string {
	if d.user == nil {
		return ""
	}
	return d.user.Name
}

func (d *directoryIdentity) Email() string {
	if d.user == nil {
		return ""
	}
	return d.user.EmailAddr
}

func (d *directoryIdentity) Role() string {
	if d.user == nil {
		return ""
	}
	return d.user.UserRole
}
