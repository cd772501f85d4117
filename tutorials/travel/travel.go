// Package travel is a fan-out/gather pipeline. Three finders search in
// parallel and write their results to state; an itinerary builder then
// merges them:
//
//	TravelPlanningSystem (sequential)
//	├── ParallelSearch (parallel)
//	│   ├── flight_finder   -> flight_options
//	│   ├── hotel_finder    -> hotel_options
//	│   └── activity_finder -> activity_options
//	└── itinerary_builder   -> final_itinerary
package travel

import (
	"fmt"
	"time"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

const (
	RootName     = "TravelPlanningSystem"
	ParallelName = "ParallelSearch"
	ModelID      = "gemini-2.5-flash"

	KeyFlightOptions   = "flight_options"
	KeyHotelOptions    = "hotel_options"
	KeyActivityOptions = "activity_options"
	KeyFinalItinerary  = "final_itinerary"
)

// SearchTimeout bounds the parallel search.
var SearchTimeout = 2 * time.Minute

const FlightFinderInstruction = `
You are a flight search specialist. Based on the user's travel request, search for available flights.

Provide 2-3 flight options with:
- Airline name
- Departure and arrival times
- Price range
- Flight duration

Format as a bulleted list. Be specific and realistic.
`

const HotelFinderInstruction = `
You are a hotel search specialist. Based on the user's travel request, find suitable hotels.

Provide 2-3 hotel options with:
- Hotel name and rating
- Location (district/area)
- Price per night
- Key amenities

Format as a bulleted list. Be specific and realistic.
`

const ActivityFinderInstruction = `
You are a local activities expert. Based on the user's travel request, recommend activities and attractions.

Provide 4-5 activity suggestions with:
- Activity name
- Description (1 sentence)
- Estimated duration
- Estimated cost

Format as a bulleted list. Include mix of paid/free activities.
`

const ItineraryBuilderInstruction = `
    You are a travel planner. Create a complete, well-organized itinerary by
    combining the search results below.

    **Available Flights:**
    {flight_options}

    **Available Hotels:**
    {hotel_options}

    **Recommended Activities:**
    {activity_options}

    Create a formatted itinerary that:
    1. Recommends the BEST option from each category (flights, hotel)
    2. Organizes activities into a day-by-day plan
    3. Includes estimated total cost
    4. Adds helpful travel tips

    Format beautifully with clear sections and markdown.

    `

type agentDef struct {
	name        string
	description string
	instruction string
	outputKey   string
}

var finders = []agentDef{
	{"flight_finder", "Searches for available flights", FlightFinderInstruction, KeyFlightOptions},
	{"hotel_finder", "Searches for available hotels", HotelFinderInstruction, KeyHotelOptions},
	{"activity_finder", "Finds activities and attractions", ActivityFinderInstruction, KeyActivityOptions},
}

var builder = agentDef{
	"itinerary_builder",
	"Combines all search results into a complete travel itinerary",
	ItineraryBuilderInstruction,
	KeyFinalItinerary,
}

func newModelAgent(models model.Resolver, s agentDef) (core.Agent, error) {
	llm, err := models(ModelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	return agent.NewModelAgent(s.name, llm, func(o *agent.ModelAgentOptions) {
		o.Description = s.description
		o.Instruction = agent.NewInstructionFromText(s.instruction)
		o.OutputKey = s.outputKey
	}), nil
}

// New builds the travel planning pipeline.
func New(models model.Resolver) (core.Agent, error) {
	searchers := make([]core.Agent, 0, len(finders))

	for _, s := range finders {
		a, err := newModelAgent(models, s)
		if err != nil {
			return nil, err
		}

		searchers = append(searchers, a)
	}

	search := agent.NewParallelAgent(ParallelName, SearchTimeout, searchers...)
	search.SetDescription("Searches flights, hotels, and activities concurrently")

	itinerary, err := newModelAgent(models, builder)
	if err != nil {
		return nil, err
	}

	root := agent.NewSequentialAgent(RootName, search, itinerary)
	root.SetDescription("Complete travel planning system with parallel search and itinerary building")

	return root, nil
}
