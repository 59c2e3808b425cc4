// Package harness drives scripted pipeline runs for conformance
// testing. A scenario loads prescription documents, resolves the
// active unit set for a given set of run inputs, and feeds a scripted
// candidate stream through the six stage call sites, recording a
// trace of every stage outcome.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario exercises"
//	documents:
//	  - path/to/prescription.yaml
//	flavor: advisory
//	run_token: test-run
//	direct: [flask]
//	candidates:
//	  - package: { name: flask, version: 1.1.0, index: https://pypi.org/simple }
//	    state:
//	      - { name: click, version: 8.0.0, index: https://pypi.org/simple }
//	final_states:
//	  - resolved:
//	      - { name: werkzeug, version: 1.0.0, index: https://pypi.org/simple }
//	accepted_states:
//	  - resolved:
//	      - { name: werkzeug, version: 1.0.0, index: https://pypi.org/simple }
//	assertions:
//	  - type: halted
//	    reason: "Stopping the pipeline"
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - halted / not_halted: run-level halt flag and reason
//   - report_contains: a report entry from a unit with a message
//   - report_count: exact number of report entries
//   - candidate_filtered: a sieve removed a candidate
//   - candidate_rejected: a candidate was rejected, optionally why
//   - candidate_score: a candidate's accumulated score
//   - candidate_yields: a candidate produced a substitute
//   - active_units: the exact active unit list, in order
//
// # Deterministic Driving
//
// The driver is strictly sequential and observes the halt flag before
// each candidate and between the pseudonym, sieve, and step stages, so
// a scenario always produces the same trace. Combined with a fixed run
// token this makes results suitable for golden file comparison via
// RunWithGolden.
package harness
