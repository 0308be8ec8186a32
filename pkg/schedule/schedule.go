// Package schedule turns a note or a screenshot into a schedule of tasks with
// times, people and places.
package schedule

import (
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

const View = "schedule"

// Draft is a task as produced by the generator.
type Draft struct {
	StartTime        string   `json:"start_time" jsonschema:"ISO 8601 start time in UTC+8, empty if unknown"`
	EndTime          string   `json:"end_time" jsonschema:"ISO 8601 end time in UTC+8, empty if unknown"`
	People           []string `json:"people" jsonschema:"people involved"`
	Theme            string   `json:"theme" jsonschema:"what the task is about"`
	CoreTasks        []string `json:"core_tasks" jsonschema:"the concrete things to do"`
	Position         []string `json:"position" jsonschema:"places where the task happens"`
	Tags             []string `json:"tags" jsonschema:"tags of the task"`
	Category         string   `json:"category" jsonschema:"category of the task"`
	SuggestedActions []string `json:"suggested_actions" jsonschema:"suggestions to prepare for the task"`
}

// Task is a scheduled task. ID is its 0-based position in the schedule.
type Task struct {
	ID int `json:"id"`
	Draft
}

// Schedule is the final schedule view.
type Schedule struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Tasks    []Task `json:"tasks"`
}

func Empty() *Schedule {
	return &Schedule{Tasks: []Task{}}
}

// PartialTask is a task that may still be arriving. Lists that have not
// started yet are omitted.
type PartialTask struct {
	// ID is set on the final chunk only.
	ID *int `json:"id,omitzero"`

	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	People           []string `json:"people,omitzero"`
	Theme            string   `json:"theme"`
	CoreTasks        []string `json:"core_tasks,omitzero"`
	Position         []string `json:"position,omitzero"`
	Tags             []string `json:"tags,omitzero"`
	Category         string   `json:"category"`
	SuggestedActions []string `json:"suggested_actions,omitzero"`
}

// Partial is one streamed schedule chunk.
type Partial struct {
	Title    *extract.StreamState[string]        `json:"title,omitzero"`
	Category *string                             `json:"category,omitzero"`
	Tasks    *extract.StreamState[[]PartialTask] `json:"tasks,omitzero"`

	// Text is the original content, set on the final chunk only.
	Text string `json:"text,omitempty"`
}

type Output struct {
	Title    string  `json:"title" jsonschema:"title of the schedule"`
	Category string  `json:"category" jsonschema:"category of the schedule"`
	Tasks    []Draft `json:"tasks" jsonschema:"tasks in chronological order"`
}

var Schema = &extract.Schema{
	Name: View,
	Fields: map[string]extract.Field{
		"title":    {Type: extract.TypeString, Tracked: true},
		"category": {Type: extract.TypeString},
		"tasks": {Type: extract.TypeList, Tracked: true, Items: &extract.Schema{
			Name: "task",
			Fields: map[string]extract.Field{
				"start_time":        {Type: extract.TypeString},
				"end_time":          {Type: extract.TypeString},
				"people":            {Type: extract.TypeList},
				"theme":             {Type: extract.TypeString},
				"core_tasks":        {Type: extract.TypeList},
				"position":          {Type: extract.TypeList},
				"tags":              {Type: extract.TypeList},
				"category":          {Type: extract.TypeString},
				"suggested_actions": {Type: extract.TypeList},
			},
		}},
	},
}
