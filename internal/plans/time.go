package plans

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to freeze phase timestamps.
var timeNow = time.Now
