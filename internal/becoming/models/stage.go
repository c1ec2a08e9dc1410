package models

import (
	"encoding/json"
	"strconv"
)

// Stage is the avatar progression level derived from the milestone count.
type Stage uint8

const (
	StageGrayscale Stage = iota
	StageColor
	StageVivid
	StageHalo
)

var stageNames = [...]string{"GRAYSCALE", "COLOR", "VIVID", "HALO"}

// StageFor maps a milestone count to its stage: 0, 1 and 2 map to
// themselves and anything from 3 up is the final stage.
func StageFor(count int) Stage {
	switch {
	case count <= 0:
		return StageGrayscale
	case count >= int(StageHalo):
		return StageHalo
	default:
		return Stage(count)
	}
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}

type stageJSON struct {
	Level uint8  `json:"level"`
	Name  string `json:"name"`
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(stageJSON{Level: uint8(s), Name: s.String()})
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var v stageJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Stage(v.Level)
	return nil
}
