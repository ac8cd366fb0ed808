package api

// StackValuesEntry is the block a project owns inside
// environments.{env}.values of a helmfile stack descriptor:
//
//	environments:
//	  staging:
//	    values:
//	      - fooBar:
//	          version: 1.2.0
//	          installed: true
//
// Version "0" means the project is not installed in that environment.
type StackValuesEntry struct {
	Version   string `yaml:"version"`
	Installed bool   `yaml:"installed"`
}
