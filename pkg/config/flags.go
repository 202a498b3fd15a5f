package config

type Flags struct {
	ConfigFile   string
	Image        string
	Arch         string
	Repository   string
	Branch       string
	All          bool
	Privileged   bool
	Remove       bool
	Credentials  string
	Socket       string
	Engine       string
	FromCheckout string
	DryRun       bool
	NoColor      bool
	PrintVersion bool
	Verbose      bool
}

// Apply copies onto cfg every flag the user set explicitly.
// changed reports whether a flag, by its long name, was given on the command line.
func Apply(cfg *Config, flags *Flags, changed func(name string) bool) error {
	if changed("image") {
		cfg.Image = flags.Image
	}
	if changed("arch") {
		cfg.Arch = flags.Arch
	}
	if changed("repository") {
		cfg.Repository = flags.Repository
	}
	if changed("branch") {
		cfg.Branch = flags.Branch
	}
	if changed("all") {
		cfg.All = flags.All
	}
	if changed("privileged") {
		cfg.Privileged = flags.Privileged
	}
	if changed("rm") {
		cfg.Remove = flags.Remove
	}
	if changed("credentials") {
		cfg.Credentials = flags.Credentials
	}
	if changed("socket") {
		cfg.Socket = flags.Socket
	}
	if changed("engine") {
		if err := CheckEngine(flags.Engine); err != nil {
			return err
		}
		cfg.Engine = flags.Engine
	}
	return nil
}
