package vm

// checkCancelled polls the context of the current Run or Call. The
// interpreter calls it every CancelCheckInterval instructions; host
// natives receive the same context and may return early on their own.
func (vm *VM) checkCancelled() error {
	if vm.ctx == nil {
		return nil
	}
	if err := vm.ctx.Err(); err != nil {
		rerr := vm.errorf("Execution cancelled.")
		rerr.cause = err
		return rerr
	}
	return nil
}
