package credbox

// ResetDefault discards the process-wide store between tests.
var ResetDefault = resetDefault
