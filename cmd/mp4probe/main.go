// Command mp4probe loads an MP4 file progressively, prints the recovered
// track metadata and optionally extracts the samples of a time window.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/teocci/go-mp4-demux/av"
	"github.com/teocci/go-mp4-demux/format/mp4"
)

func main() {
	var (
		url     string
		track   string
		from    float64
		to      float64
		verbose bool
	)
	flag.StringVar(&url, "url", "", "mp4 file to probe")
	flag.StringVar(&track, "track", "", "extract samples of this track: video or audio")
	flag.Float64Var(&from, "from", 0, "window start in seconds")
	flag.Float64Var(&to, "to", 0, "window end in seconds, 0 means end of movie")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if url == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(url)
	if err != nil {
		logrus.Fatalf("open %v failed: %v", url, err)
	}
	defer f.Close()

	src, err := av.NewFileSource(f)
	if err != nil {
		logrus.Fatalf("stat %v failed: %v", url, err)
	}

	demux := mp4.NewDemuxer(src)
	meta, err := demux.Load()
	if err != nil {
		logrus.Fatalf("load failed: %v", err)
	}
	fmt.Println(meta)

	if track == "" {
		return
	}
	var tt av.TrackType
	switch track {
	case "video":
		tt = av.Video
	case "audio":
		tt = av.Audio
	default:
		logrus.Fatalf("unknown track type %q", track)
	}

	samples, err := demux.Extract(tt, from, to)
	if err != nil {
		logrus.Fatalf("extract failed: %v", err)
	}
	if len(samples) == 0 {
		fmt.Println("no samples in window")
		return
	}
	var total int
	for _, s := range samples {
		total += len(s.Data)
	}
	first, last := samples[0], samples[len(samples)-1]
	fmt.Printf("%d samples, %d bytes, first %v (%v) last %v\n",
		len(samples), total,
		first.Time, first.Kind, last.Time)
}
