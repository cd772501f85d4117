package podcast

import (
	"errors"
	"fmt"
)

// PodcastSpeaker is a host or guest of an episode.
type PodcastSpeaker struct {
	SpeakerID string `json:"speaker_id" jsonschema:"required,description=Short unique id used to attribute lines in the transcript"`
	Name      string `json:"name" jsonschema:"required,description=Display name of the speaker"`
	Role      string `json:"role" jsonschema:"required,description=Role on the show such as host or guest expert"`
}

// Segment is one main segment of the episode.
type Segment struct {
	Title        string   `json:"title" jsonschema:"required,description=Segment title"`
	ScriptPoints []string `json:"script_points" jsonschema:"required,description=Talking points covered in the segment"`
}

// PodcastEpisodePlan is the outline the planner produces.
type PodcastEpisodePlan struct {
	EpisodeTitle string           `json:"episode_title" jsonschema:"required,description=Title of the episode"`
	Speakers     []PodcastSpeaker `json:"speakers" jsonschema:"required,description=Everyone speaking in the episode"`
	Segments     []Segment        `json:"segments" jsonschema:"required,description=Main segments in running order"`
}

func missing(field string) error { return fmt.Errorf("%s is required", field) }

// Validate reports a nil script_points list. Empty values are allowed.
func (s Segment) Validate() error {
	if s.ScriptPoints == nil {
		return missing("script_points")
	}

	return nil
}

// Validate reports nil lists in the plan and its segments. Like the tool
// schema it checks presence only, so an empty title or an empty speaker
// list is a valid plan. String fields of a decoded plan are always present.
func (p PodcastEpisodePlan) Validate() error {
	var errs []error

	if p.Speakers == nil {
		errs = append(errs, missing("speakers"))
	}

	if p.Segments == nil {
		errs = append(errs, missing("segments"))
	}

	for i, s := range p.Segments {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("segments[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
