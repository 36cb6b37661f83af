package cpu

// Execute applies one decoded instruction. Every handler checks its
// preconditions before writing, so a returned error leaves the machine
// unchanged. Operand fields are masked to their encoded widths, so a
// hand-built instruction cannot index past the register file.
func (c *CPU) Execute(in Instruction) (State, error) {
	var err error
	in.X &= 0xF
	in.Y &= 0xF
	in.N &= 0xF
	in.NNN &= 0x0FFF

	switch in.Kind {
	case KindCls:
		c.Display = [Width * Height]byte{}
		c.Dirty = true
		c.PC += 2

	case KindRet:
		if c.SP == 0 {
			return c.State, ErrStackUnderflow
		}
		c.SP--
		c.PC = c.Stack[c.SP] + 2

	case KindExit:
		c.State = Halted
		return Halted, nil

	case KindLow:
		c.Mode = ModeStandard
		c.PC += 2

	case KindHigh:
		c.Mode = ModeExtended
		c.PC += 2

	case KindJump:
		c.PC = in.NNN

	case KindCall:
		if c.SP >= StackSize {
			return c.State, ErrStackOverflow
		}
		c.Stack[c.SP] = c.PC
		c.SP++
		c.PC = in.NNN

	case KindSkipEqByte:
		c.skipIf(c.V[in.X] == in.NN)

	case KindSkipNeByte:
		c.skipIf(c.V[in.X] != in.NN)

	case KindSkipEqReg:
		c.skipIf(c.V[in.X] == c.V[in.Y])

	case KindSkipNeReg:
		c.skipIf(c.V[in.X] != c.V[in.Y])

	case KindLoadByte:
		c.V[in.X] = in.NN
		c.PC += 2

	case KindAddByte:
		c.V[in.X] += in.NN
		c.PC += 2

	case KindMove:
		c.V[in.X] = c.V[in.Y]
		c.PC += 2

	case KindOr:
		c.V[in.X] |= c.V[in.Y]
		c.PC += 2

	case KindAnd:
		c.V[in.X] &= c.V[in.Y]
		c.PC += 2

	case KindXor:
		c.V[in.X] ^= c.V[in.Y]
		c.PC += 2

	case KindAddReg:
		sum := uint16(c.V[in.X]) + uint16(c.V[in.Y])
		c.setFlag(sum > 0xFF)
		c.V[in.X] = byte(sum)
		c.PC += 2

	case KindSub:
		vx, vy := c.V[in.X], c.V[in.Y]
		c.setFlag(vx > vy)
		c.V[in.X] = vx - vy
		c.PC += 2

	case KindSubn:
		// VF is 0 on borrow, so equal operands report 1 here but 0 for SUB.
		vx, vy := c.V[in.X], c.V[in.Y]
		c.setFlag(vy >= vx)
		c.V[in.X] = vy - vx
		c.PC += 2

	case KindShr:
		vx := c.V[in.X]
		c.V[FlagReg] = vx & 0x01
		c.V[in.X] = vx >> 1
		c.PC += 2

	case KindShl:
		vx := c.V[in.X]
		c.V[FlagReg] = vx >> 7
		c.V[in.X] = vx << 1
		c.PC += 2

	case KindLoadIndex:
		c.I = in.NNN
		c.PC += 2

	case KindJumpOffset:
		c.PC = in.NNN + uint16(c.V[0])

	case KindRandom:
		c.V[in.X] = byte(c.random().UintN(256)) & in.NN
		c.PC += 2

	case KindDraw:
		err = c.draw(in)

	case KindSkipKey:
		c.skipIf(c.Keys[c.V[in.X]&0xF])

	case KindSkipNotKey:
		c.skipIf(!c.Keys[c.V[in.X]&0xF])

	case KindLoadDelay:
		c.V[in.X] = c.DT
		c.PC += 2

	case KindWaitKey:
		return c.waitKey(in), nil

	case KindSetDelay:
		c.DT = c.V[in.X]
		c.PC += 2

	case KindSetSound:
		// No audio; the value is dropped.
		c.PC += 2

	case KindAddIndex:
		// Left unmasked: only accesses through I are bounds checked.
		c.I += uint16(c.V[in.X])
		c.PC += 2

	case KindLoadFont:
		c.I = FontStart + uint16(c.V[in.X])*GlyphSize
		c.PC += 2

	case KindStoreBCD:
		if err = c.checkRange(c.I, 3); err != nil {
			break
		}
		vx := c.V[in.X]
		c.Memory[c.I] = vx / 100
		c.Memory[c.I+1] = (vx / 10) % 10
		c.Memory[c.I+2] = vx % 10
		c.PC += 2

	case KindStoreRegs:
		n := int(in.X) + 1
		if err = c.checkRange(c.I, n); err != nil {
			break
		}
		copy(c.Memory[c.I:int(c.I)+n], c.V[:n])
		c.PC += 2

	case KindLoadRegs:
		n := int(in.X) + 1
		if err = c.checkRange(c.I, n); err != nil {
			break
		}
		copy(c.V[:n], c.Memory[c.I:int(c.I)+n])
		c.PC += 2

	default:
		return c.State, &OpcodeError{Opcode: in.Opcode}
	}

	if err != nil {
		return c.State, err
	}
	c.State = Running
	return Running, nil
}

func (c *CPU) skipIf(cond bool) {
	if cond {
		c.PC += 4
	} else {
		c.PC += 2
	}
}

func (c *CPU) setFlag(set bool) {
	if set {
		c.V[FlagReg] = 1
	} else {
		c.V[FlagReg] = 0
	}
}

func (c *CPU) checkRange(addr uint16, length int) error {
	if int(addr)+length > MemorySize {
		return boundsError(int(addr), length)
	}
	return nil
}

// draw XORs an 8xN sprite from memory[I] onto the display. The origin is
// taken modulo the screen size and the sprite wraps around the edges.
func (c *CPU) draw(in Instruction) error {
	height := int(in.N)
	if err := c.checkRange(c.I, height); err != nil {
		return err
	}

	ox := int(c.V[in.X]) % Width
	oy := int(c.V[in.Y]) % Height

	var collision byte
	for row := 0; row < height; row++ {
		bits := c.Memory[int(c.I)+row]
		y := (oy + row) % Height
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			x := (ox + col) % Width
			idx := y*Width + x
			if c.Display[idx] == 1 {
				collision = 1
			}
			c.Display[idx] ^= 1
		}
	}

	c.V[FlagReg] = collision
	c.Dirty = true
	c.PC += 2
	return nil
}

// waitKey latches the lowest pressed key into Vx. With no key down PC stays
// put and the machine reports AwaitingKey.
func (c *CPU) waitKey(in Instruction) State {
	for k, down := range c.Keys {
		if down {
			c.V[in.X] = byte(k)
			c.PC += 2
			c.State = Running
			return Running
		}
	}
	c.State = AwaitingKey
	return AwaitingKey
}
