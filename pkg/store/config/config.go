package config

// Version is the config schema version this build reads and writes.
const Version = 1

type Config struct {
	Version    int        `toml:"version" yaml:"version"`       // config schema version
	Magiskboot Magiskboot `toml:"magiskboot" yaml:"magiskboot"` // unpacker binary
	Exec       Exec       `toml:"exec" yaml:"exec"`             // privileged shell
	Device     Device     `toml:"device" yaml:"device"`         // slots and block devices
	Backup     Backup     `toml:"backup" yaml:"backup"`         // stock image backups
	Export     Export     `toml:"export" yaml:"export"`         // exported images
	Log        Log        `toml:"log" yaml:"log"`
	Metrics    Metrics    `toml:"metrics" yaml:"metrics"`
}

type Magiskboot struct {
	Path string `toml:"path" yaml:"path"`
}

type Exec struct {
	Su string `toml:"su" yaml:"su"` // empty runs commands with sh -c directly
}

type Device struct {
	ByNameDirs []string `toml:"by_name_dirs" yaml:"by_name_dirs"`
	Slots      []string `toml:"slots" yaml:"slots"`
	SlotSuffix string   `toml:"slot_suffix" yaml:"slot_suffix"` // empty reads ro.boot.slot_suffix
}

type Backup struct {
	Root string `toml:"root" yaml:"root"` // parent of magisk_backup_<hash> dirs
}

type Export struct {
	Backend string `toml:"backend" yaml:"backend"` // local|s3
	Dir     string `toml:"dir" yaml:"dir"`
	S3      S3     `toml:"s3" yaml:"s3"`
}

type S3 struct {
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	Bucket    string `toml:"bucket" yaml:"bucket"`
	Region    string `toml:"region" yaml:"region"`
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`   // debug|info|warn|error
	Format string `toml:"format" yaml:"format"` // json|console
	Output string `toml:"output" yaml:"output"` // stderr, stdout or a file path
	Tag    string `toml:"tag" yaml:"tag"`       // component field on engine logs
}

type Metrics struct {
	Textfile string `toml:"textfile" yaml:"textfile"` // node-exporter textfile; empty disables
}
