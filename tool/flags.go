package tool

// Overrides holds runtime overrides from CLI flags. Zero values leave the
// loaded configuration untouched.
type Overrides struct {
	Log                string
	UseConfigPath      string
	UseMultcastAddress string
	UseMultcastPort    int
	Port               int
	RemoteHost         string
	RemotePort         int
	Token              string
	DeviceName         string
}

// Apply writes the non-zero overrides into cfg.
func (o Overrides) Apply(cfg *AppConfig) {
	if o.UseMultcastAddress != "" {
		cfg.Discovery.MulticastAddress = o.UseMultcastAddress
	}
	if o.UseMultcastPort != 0 {
		cfg.Discovery.MulticastPort = o.UseMultcastPort
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.RemoteHost != "" {
		cfg.Client.RemoteHost = o.RemoteHost
	}
	if o.RemotePort != 0 {
		cfg.Client.RemotePort = o.RemotePort
	}
	if o.Token != "" {
		cfg.Auth.Token = o.Token
	}
	if o.DeviceName != "" {
		cfg.General.DeviceName = o.DeviceName
	}
}
