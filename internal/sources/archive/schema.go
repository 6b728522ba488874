package archive

// CurrentVersion is written into every exported file.
const CurrentVersion = 1

// Entry is one bookmark. At accepts "HH:MM:SS", "MM:SS" or plain seconds.
type Entry struct {
	At   string `yaml:"at"`
	Note string `yaml:"note,omitempty"`
}

// Video groups the bookmarks of one archived video.
type Video struct {
	ID         string  `yaml:"id"`
	Title      string  `yaml:"title,omitempty"`
	Timestamps []Entry `yaml:"timestamps"`
}

// File is the root structure of an archive file:
//
//	version: 1
//	channels:
//	  somechannel:
//	    - id: "2001"
//	      title: Speedrun night
//	      timestamps:
//	        - at: "01:02:03"
//	          note: world record
type File struct {
	Version  int                `yaml:"version"`
	Channels map[string][]Video `yaml:"channels"`
}
