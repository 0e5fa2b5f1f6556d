package prototype

import "os"

// PrivilegeMode decides how commands that need root are executed. It is
// determined once per run and handed to the Executor.
type PrivilegeMode int

const (
	// PrivilegeNone runs every command as the current user.
	PrivilegeNone PrivilegeMode = iota
	// PrivilegeRoot means the process already runs as root.
	PrivilegeRoot
	// PrivilegeSudo re-invokes privileged commands through sudo.
	PrivilegeSudo
)

func (m PrivilegeMode) String() string {
	switch m {
	case PrivilegeRoot:
		return "root"
	case PrivilegeSudo:
		return "sudo"
	default:
		return "none"
	}
}

// DetectPrivilege returns PrivilegeRoot when the effective uid is 0 and
// PrivilegeSudo otherwise.
func DetectPrivilege() PrivilegeMode {
	if IsRoot() {
		return PrivilegeRoot
	}
	return PrivilegeSudo
}

// IsRoot reports whether the process runs with effective uid 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// wrap returns the command line to execute for name and args under m.
func (m PrivilegeMode) wrap(name string, args []string) (string, []string) {
	if m != PrivilegeSudo {
		return name, args
	}
	return "sudo", append([]string{name}, args...)
}
