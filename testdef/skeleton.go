package testdef

// skeletonYAML is the commented template emitted by `formward test init`.
const skeletonYAML = `# Form test definition
# Run with: formward test run <this-file.yaml>

# Test metadata
name: "My Test"

# Project configuration
domain: my-project
app_id: your-app-id-here
username: mobile-worker-username

# Maximum time (seconds) to wait for the test to complete
timeout: 120

# Navigation steps to reach the form.
# These are the menu/entity selections in the app. Each entry is sent
# as a line of input to the player. Use the number corresponding to the
# menu item (1-indexed).
navigation:
  - "1"    # Select first menu item
  # - "2"  # Select sub-menu or entity, etc.

# Form answers keyed by question reference (XPath).
# These are replayed with the player's :replay mechanism, which matches
# answers by question reference (not position).
#
# Supported values:
#   - Any string/number value for text, integer, date, etc.
#   - A number for select questions (1-indexed option)
#   - SKIP       -- explicitly skip a question
#   - NEW_REPEAT -- add a new repeat group instance
#
answers:
  # /data/name: "Jane Doe"
  # /data/age: "32"
  # /data/village: "Kigali"
  # /data/repeat_group: NEW_REPEAT
  # /data/repeat_group/item: "first item"
  # /data/optional_field: SKIP
`

// Skeleton returns a commented YAML skeleton for a test definition.
func Skeleton() string {
	return skeletonYAML
}
